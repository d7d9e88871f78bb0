// Package voice serializes utterances to a Speaker.
//
// Texts passed to Queue.Speak are spoken one at a time, in order, by a
// single drain goroutine that exits as soon as the queue is empty.
package voice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// Speaker speaks one utterance. Speak blocks until playback has finished
// and must return promptly once ctx is canceled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// SpeakerFunc adapts a function to Speaker.
type SpeakerFunc func(ctx context.Context, text string) error

// Speak implements Speaker.
func (f SpeakerFunc) Speak(ctx context.Context, text string) error { return f(ctx, text) }

// Queue is a FIFO of utterances. It is safe for concurrent use.
type Queue struct {
	speaker Speaker
	logger  *slog.Logger

	mu        sync.Mutex
	pending   []string
	speaking  bool
	interrupt context.CancelFunc // cancels the utterance in progress
	idle      chan struct{}      // closed when the drain loop exits
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

// NewQueue creates an idle queue speaking through s.
func NewQueue(s Speaker, opts ...Option) *Queue {
	q := &Queue{speaker: s, logger: slog.Default()}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Speak enqueues text and starts the drain loop if it is not running.
// Blank texts are ignored. It reports whether text was enqueued.
func (q *Queue) Speak(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, text)
	if !q.speaking {
		q.speaking = true
		q.idle = make(chan struct{})
		go q.drain(q.idle)
	}
	return true
}

// Stop drops every queued text and interrupts the utterance in progress.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	if q.interrupt != nil {
		q.interrupt()
	}
}

// Speaking reports whether an utterance is in progress or queued.
func (q *Queue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// Pending returns the number of texts waiting behind the current one.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until the queue is drained or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle, speaking := q.idle, q.speaking
	q.mu.Unlock()
	if !speaking {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain speaks queued texts until none are left. A failed utterance is
// logged and the loop moves on to the next one.
func (q *Queue) drain(idle chan struct{}) {
	defer close(idle)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.speaking = false
			q.interrupt = nil
			q.mu.Unlock()
			return
		}
		text := q.pending[0]
		q.pending = q.pending[1:]
		ctx, cancel := context.WithCancel(context.Background())
		q.interrupt = cancel
		q.mu.Unlock()

		err := q.speaker.Speak(ctx, text)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			q.logger.Debug("voice: utterance interrupted")
		default:
			q.logger.Warn("voice: speak failed", "error", err, "chars", len(text))
		}
	}
}
