package notifier

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Stdout prints messages between rulers.
type Stdout struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdout writes to out, or os.Stdout when out is nil.
func NewStdout(out io.Writer) *Stdout {
	if out == nil {
		out = os.Stdout
	}
	return &Stdout{out: out}
}

func (s *Stdout) Name() string { return TypeStdout }

func (s *Stdout) Send(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	ruler := strings.Repeat("=", 60)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "\n%s\n📢 NOTIFICATION\n%s\n%s\n%s\n\n", ruler, ruler, message, ruler); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	return nil
}

func (s *Stdout) Validate() error { return nil }
