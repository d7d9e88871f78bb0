// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"

	"github.com/flemzord/utsuwa/internal/cron"
	"github.com/flemzord/utsuwa/internal/savefile"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu    sync.Mutex
	calls int
}

// Compile-time interface check.
var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and increments the call counter.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Exporter returns a fixed save file, or Err.
type Exporter struct {
	SaveFile *savefile.SaveFile
	Err      error
}

// Compile-time interface check.
var _ cron.Exporter = (*Exporter)(nil)

// Export implements cron.Exporter.
func (e *Exporter) Export(context.Context) (*savefile.SaveFile, error) {
	if e.Err != nil {
		return nil, e.Err
	}
	if e.SaveFile == nil {
		return &savefile.SaveFile{Version: savefile.Version}, nil
	}
	return e.SaveFile, nil
}
