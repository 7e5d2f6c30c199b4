package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openreceipts/shelfmatch/internal/model"
)

func TestSortMethodsByCount(t *testing.T) {
	byMethod := map[model.MatchMethod]int64{
		model.MethodNameSimilarity:  5,
		model.MethodExactIdentifier: 5,
		model.MethodVectorSimilarity: 9,
	}

	got := sortMethodsByCount(byMethod)

	want := []model.MatchMethod{
		model.MethodVectorSimilarity,
		model.MethodExactIdentifier,
		model.MethodNameSimilarity,
	}
	assert.Equal(t, want, got, "busiest method first, ties broken by name")
}

func TestSortMethodsByCountEmpty(t *testing.T) {
	assert.Empty(t, sortMethodsByCount(nil))
}
