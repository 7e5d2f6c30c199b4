package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCanceled is returned when a read is abandoned because its
// context was canceled.
var ErrInputCanceled = errors.New("input canceled")

// CancelableReader reads terminal input while honoring context
// cancellation. The underlying blocking read cannot be interrupted, so a
// canceled read leaves its goroutine parked until the next line arrives;
// the lock keeps that late result from bleeding into the following read.
type CancelableReader struct {
	reader      *bufio.Reader
	readingLock sync.Mutex
}

// NewCancelableReader creates a reader over r.
func NewCancelableReader(r io.Reader) *CancelableReader {
	if r == nil {
		panic("reader cannot be nil")
	}

	return &CancelableReader{
		reader: bufio.NewReader(r),
	}
}

// ReadString reads until delim, respecting context cancellation. A final
// unterminated line is returned without an error; callers see io.EOF on
// the read after it.
func (r *CancelableReader) ReadString(ctx context.Context, delim byte) (string, error) {
	select {
	case <-ctx.Done():
		return "", ErrInputCanceled
	default:
	}

	type result struct {
		err   error
		value string
	}
	resultCh := make(chan result, 1)

	go func() {
		r.readingLock.Lock()
		defer r.readingLock.Unlock()

		value, err := r.reader.ReadString(delim)
		resultCh <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ErrInputCanceled
	case res := <-resultCh:
		if errors.Is(res.err, io.EOF) && res.value != "" {
			return res.value, nil
		}
		return res.value, res.err
	}
}

// ReadLine reads one line and trims surrounding whitespace.
func (r *CancelableReader) ReadLine(ctx context.Context) (string, error) {
	line, err := r.ReadString(ctx, '\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
