package cli

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelableReader_ReadLine(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedValue string
		expectError   bool
	}{
		{
			name:          "successful read",
			input:         "test input\n",
			expectedValue: "test input",
		},
		{
			name:          "read with extra whitespace",
			input:         "  test input  \n",
			expectedValue: "test input",
		},
		{
			name:          "empty line",
			input:         "\n",
			expectedValue: "",
		},
		{
			name:          "unterminated final line",
			input:         "no newline",
			expectedValue: "no newline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewCancelableReader(strings.NewReader(tt.input))

			ctx := context.Background()
			result, err := reader.ReadLine(ctx)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedValue, result)
			}
		})
	}
}

func TestCancelableReader_ContextCancellation(t *testing.T) {
	t.Run("immediate cancellation", func(t *testing.T) {
		reader := NewCancelableReader(strings.NewReader("pending input\n"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := reader.ReadLine(ctx)
		assert.Equal(t, ErrInputCanceled, err)
	})

	t.Run("cancellation during read", func(t *testing.T) {
		// A pipe blocks the read until data arrives, which it never does.
		pr, pw := io.Pipe()
		defer func() { _ = pr.Close() }()
		defer func() { _ = pw.Close() }()

		reader := NewCancelableReader(pr)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := reader.ReadLine(ctx)
		assert.Equal(t, ErrInputCanceled, err)
	})
}

func TestCancelableReader_MultipleReads(t *testing.T) {
	input := "line1\nline2\nline3\n"
	reader := NewCancelableReader(strings.NewReader(input))

	ctx := context.Background()

	line1, err := reader.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "line1", line1)

	line2, err := reader.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "line2", line2)

	line3, err := reader.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "line3", line3)
}

func TestCancelableReader_EOF(t *testing.T) {
	reader := NewCancelableReader(strings.NewReader("only line\n"))

	ctx := context.Background()

	line, err := reader.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "only line", line)

	_, err = reader.ReadLine(ctx)
	assert.ErrorIs(t, err, io.EOF)
}
