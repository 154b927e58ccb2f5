package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Writer prints messages instead of delivering them. It backs --dry-run.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Name() string { return "stdout" }

func (w *Writer) Send(ctx context.Context, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintf(w.w, "%s\n\n", text)
	return err
}
