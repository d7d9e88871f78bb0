package voice

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// WriterSpeaker "speaks" by writing each utterance as a line to W, pausing
// PerRune for every character to approximate playback time. It is the
// terminal fallback when no speech engine is attached.
type WriterSpeaker struct {
	W       io.Writer
	PerRune time.Duration

	mu sync.Mutex
}

// Speak implements Speaker.
func (w *WriterSpeaker) Speak(ctx context.Context, text string) error {
	w.mu.Lock()
	_, err := fmt.Fprintln(w.W, text)
	w.mu.Unlock()
	if err != nil {
		return fmt.Errorf("voice: write: %w", err)
	}
	if w.PerRune <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(time.Duration(len([]rune(text))) * w.PerRune)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
