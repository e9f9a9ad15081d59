package semantic

import (
	"context"
	"fmt"
	"sync"
)

// Lazy defers encoder construction until the first Encode call and
// performs it exactly once, even when racing requests trigger it
// together. Construction is expensive (it reaches the model endpoint),
// so only the first request after process start pays for it. A failed
// construction is remembered: every later call reports the same error
// instead of retrying or crashing.
type Lazy struct {
	once sync.Once
	init func() (Encoder, error)
	enc  Encoder
	err  error
}

// NewLazy wraps an encoder constructor.
func NewLazy(init func() (Encoder, error)) *Lazy {
	return &Lazy{init: init}
}

func (l *Lazy) get() (Encoder, error) {
	l.once.Do(func() {
		l.enc, l.err = l.init()
	})
	if l.err != nil {
		return nil, fmt.Errorf("encoder unavailable: %w", l.err)
	}
	return l.enc, nil
}

// Encode initializes the underlying encoder on first use and delegates.
func (l *Lazy) Encode(ctx context.Context, text string) ([]float32, error) {
	enc, err := l.get()
	if err != nil {
		return nil, err
	}
	return enc.Encode(ctx, text)
}
