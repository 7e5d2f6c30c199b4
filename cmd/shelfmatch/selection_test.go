package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestSelectionCmd(t *testing.T) {
	cmd := selectionCmd()

	// Test that subcommands exist
	names := make(map[string]*cobra.Command)
	for _, subcmd := range cmd.Commands() {
		names[subcmd.Name()] = subcmd
	}

	assert.NotNil(t, names["propose"], "propose subcommand should exist")
	assert.NotNil(t, names["commit"], "commit subcommand should exist")
	assert.NotNil(t, names["bulk"], "bulk subcommand should exist")

	commit := names["commit"]
	if assert.NotNil(t, commit) {
		flag := commit.Flag("confidence")
		assert.NotNil(t, flag, "confidence flag should exist")
		assert.Equal(t, "0", flag.DefValue, "zero lets the resolver fill in full confidence")
	}
}
