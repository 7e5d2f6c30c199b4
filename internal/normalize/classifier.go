// Package normalize provides receipt line text cleaning and classification.
package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// LineKind represents the kind of non-product receipt line a pattern detects.
type LineKind string

const (
	// KindDiscount marks coupon, promotion, and savings lines.
	KindDiscount LineKind = "discount"
	// KindAdjustment marks tax, void, correction, and override lines.
	KindAdjustment LineKind = "adjustment"
)

// Pattern represents one receipt line classification pattern.
type Pattern struct {
	Name     string
	Kind     LineKind
	Regex    string
	Priority int // Higher priority patterns are checked first
}

// CompiledPattern holds a compiled regex pattern with metadata.
type CompiledPattern struct {
	compiledRegex *regexp.Regexp
	Pattern
}

// LineFlags is the classification outcome for one raw receipt line. Both
// flags may be set; a line carrying either flag is never a regular item.
type LineFlags struct {
	DiscountPattern   string
	AdjustmentPattern string
	IsDiscount        bool
	IsAdjustment      bool
}

// LineClassifier classifies raw receipt lines as discount or adjustment
// lines using purely lexical rules. Classification is deterministic and
// side-effect-free; no external calls are made.
type LineClassifier struct {
	patterns []CompiledPattern
	mu       sync.RWMutex
}

// NewLineClassifier creates a classifier from the given patterns.
func NewLineClassifier(patterns []Pattern) (*LineClassifier, error) {
	compiled := make([]CompiledPattern, 0, len(patterns))

	for _, p := range patterns {
		regexStr := p.Regex
		if !strings.HasPrefix(regexStr, "(?i)") {
			regexStr = "(?i)" + regexStr // Make case-insensitive by default
		}

		regex, err := regexp.Compile(regexStr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %s: %w", p.Name, err)
		}

		compiled = append(compiled, CompiledPattern{
			Pattern:       p,
			compiledRegex: regex,
		})
	}

	// Sort by priority (highest first)
	for i := 0; i < len(compiled)-1; i++ {
		for j := i + 1; j < len(compiled); j++ {
			if compiled[j].Priority > compiled[i].Priority {
				compiled[i], compiled[j] = compiled[j], compiled[i]
			}
		}
	}

	return &LineClassifier{
		patterns: compiled,
	}, nil
}

// NewDefaultLineClassifier creates a classifier with the built-in patterns.
func NewDefaultLineClassifier() (*LineClassifier, error) {
	return NewLineClassifier(DefaultPatterns())
}

// Classify flags a raw receipt line as discount and/or adjustment. The
// first matching pattern of each kind wins, in priority order.
func (lc *LineClassifier) Classify(rawText string) LineFlags {
	lc.mu.RLock()
	defer lc.mu.RUnlock()

	var flags LineFlags
	searchText := strings.ToLower(rawText)

	for _, pattern := range lc.patterns {
		switch pattern.Kind {
		case KindDiscount:
			if flags.IsDiscount {
				continue
			}
			if pattern.compiledRegex.MatchString(searchText) {
				flags.IsDiscount = true
				flags.DiscountPattern = pattern.Name
			}
		case KindAdjustment:
			if flags.IsAdjustment {
				continue
			}
			if pattern.compiledRegex.MatchString(searchText) {
				flags.IsAdjustment = true
				flags.AdjustmentPattern = pattern.Name
			}
		}
		if flags.IsDiscount && flags.IsAdjustment {
			break
		}
	}

	return flags
}

// Patterns returns the compiled patterns in priority order.
func (lc *LineClassifier) Patterns() []Pattern {
	lc.mu.RLock()
	defer lc.mu.RUnlock()

	patterns := make([]Pattern, len(lc.patterns))
	for i, p := range lc.patterns {
		patterns[i] = p.Pattern
	}
	return patterns
}
