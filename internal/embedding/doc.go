// Package embedding talks to the vector-embedding provider used by the
// similarity matching strategy. It wraps the provider with retry logic,
// rate limiting, and a bounded response cache so repeated receipt text
// within a short window costs one call.
package embedding
