package canbus

import (
	"context"
	"sync"
)

// FakeBus is a test double that records sent frames and delivers injected
// ones.
type FakeBus struct {
	mu   sync.Mutex
	sent []Frame

	in     chan Frame
	closed chan struct{}
	once   sync.Once

	// SendError, if set, will be returned by Send()
	SendError error
}

// NewFakeBus creates a FakeBus.
func NewFakeBus() *FakeBus {
	return &FakeBus{
		in:     make(chan Frame, 64),
		closed: make(chan struct{}),
	}
}

func (b *FakeBus) Send(f Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SendError != nil {
		return b.SendError
	}
	b.sent = append(b.sent, f)
	return nil
}

func (b *FakeBus) Receive(ctx context.Context) (Frame, error) {
	select {
	case f := <-b.in:
		return f, nil
	case <-b.closed:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Inject queues a frame for Receive.
func (b *FakeBus) Inject(f Frame) {
	b.in <- f
}

// Sent returns a copy of every frame sent.
func (b *FakeBus) Sent() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Frame, len(b.sent))
	copy(out, b.sent)
	return out
}

// SentTo returns the frames sent with identifier id.
func (b *FakeBus) SentTo(id uint32) []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Frame
	for _, f := range b.sent {
		if f.ID == id {
			out = append(out, f)
		}
	}
	return out
}

// Reset forgets sent frames.
func (b *FakeBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = nil
}

func (b *FakeBus) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}
