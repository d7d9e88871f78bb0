package embedding

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/utsuwa/internal/memory"
	"github.com/flemzord/utsuwa/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Options configures a Service.
type Options struct {
	// Interactive must be true for Init to load a model. Batch tools and
	// non-interactive renders leave it false so no model is ever pulled in.
	Interactive bool

	// LoadTimeout bounds a single load attempt. Zero means no limit.
	LoadTimeout time.Duration

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Service manages the embedding model lifecycle. It is safe for concurrent
// use.
type Service struct {
	loader  Loader
	opts    Options
	logger  *slog.Logger
	metrics *telemetry.Metrics

	mu        sync.Mutex
	status    Status
	model     Model
	pending   chan struct{} // closed when the in-flight load finishes
	gen       uint64        // bumped by Close to orphan in-flight loads
	observers []observer
	nextObsID uint64

	// Notifications are queued under mu and delivered without holding it,
	// one dispatcher at a time, so observers see transitions in order and
	// may call back into the service.
	queue       []delivery
	dispatching bool
}

type observer struct {
	id uint64
	fn func(Status)
}

type delivery struct {
	status Status
	ids    []uint64
}

// Compile-time interface check.
var _ memory.QueryEmbedder = (*Service)(nil)

// NewService creates an idle Service. A nil loader makes every Init fail
// with ErrNoLoader.
func NewService(loader Loader, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		loader:  loader,
		opts:    opts,
		logger:  logger,
		metrics: opts.Metrics,
		status:  Status{State: StateIdle},
	}
	s.metrics.SetModelState(string(StateIdle), States...)
	return s
}

// Init loads the model if needed and reports whether it is ready.
//
// It returns false without loading when the service is not interactive.
// When a load is already in flight, Init waits for that load instead of
// starting another one. Cancelling ctx abandons the wait but not the load.
// A failed load leaves the service in StateError; a later Init retries.
func (s *Service) Init(ctx context.Context) bool {
	if !s.opts.Interactive {
		s.logger.Debug("embedding: init skipped", "error", ErrNotInteractive)
		return false
	}

	s.mu.Lock()
	switch s.status.State {
	case StateReady:
		s.mu.Unlock()
		return true
	case StateLoading:
		// Join the in-flight load below.
	default:
		s.pending = make(chan struct{})
		s.setStatusLocked(Status{State: StateLoading})
		go s.load(context.WithoutCancel(ctx), s.pending, s.gen)
	}
	done := s.pending
	s.mu.Unlock()
	s.flush()

	select {
	case <-done:
		return s.Ready()
	case <-ctx.Done():
		return false
	}
}

func (s *Service) load(ctx context.Context, done chan struct{}, gen uint64) {
	if s.opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.LoadTimeout)
		defer cancel()
	}
	ctx, span := telemetry.StartSpan(ctx, "embedding.load")

	start := time.Now()
	var (
		model Model
		err   error
	)
	if s.loader == nil {
		err = ErrNoLoader
	} else {
		model, err = s.loader.Load(ctx)
	}
	if err == nil && model == nil {
		err = ErrNoLoader
	}

	s.mu.Lock()
	orphaned := gen != s.gen
	switch {
	case orphaned:
	case err != nil:
		s.model = nil
		s.setStatusLocked(Status{State: StateError, Error: err.Error()})
	default:
		s.model = model
		s.setStatusLocked(Status{State: StateReady, Model: describe(model)})
	}
	if s.pending == done {
		s.pending = nil
	}
	s.mu.Unlock()
	s.flush()
	close(done)

	switch {
	case orphaned:
		if err == nil {
			_ = closeModel(model)
		}
		s.logger.Debug("embedding: discarded load finished after close")
	case err != nil:
		s.logger.Warn("embedding: model load failed", "error", err, "duration", time.Since(start))
	default:
		info := describe(model)
		span.SetAttributes(attribute.String("model", info.Name), attribute.Int("dimensions", info.Dimensions))
		s.logger.Info("embedding: model ready",
			"model", info.Name,
			"dimensions", info.Dimensions,
			"duration", time.Since(start),
		)
	}
	telemetry.EndSpan(span, err)
}

// Embed returns the embedding of text, or nil if the model is not ready or
// the model call fails.
func (s *Service) Embed(ctx context.Context, text string) []float32 {
	s.mu.Lock()
	model := s.model
	ready := s.status.State == StateReady
	s.mu.Unlock()

	if !ready || model == nil {
		s.metrics.ObserveEmbed(telemetry.EmbedNotReady, 0)
		return nil
	}

	start := time.Now()
	vec, err := model.Embed(ctx, text)
	if err != nil || len(vec) == 0 {
		s.metrics.ObserveEmbed(telemetry.EmbedError, 0)
		s.logger.Debug("embedding: embed failed", "error", err, "chars", len(text))
		return nil
	}
	s.metrics.ObserveEmbed(telemetry.EmbedOK, time.Since(start))
	return vec
}

// EmbedFacts embeds facts one at a time. Facts without an id are skipped.
// progress, if non-nil, is called after each fact (skipped ones included)
// with the number processed so far and the total. Facts whose embedding
// failed are absent from the result.
//
// If ctx is cancelled the embeddings computed so far are returned together
// with ctx.Err().
func (s *Service) EmbedFacts(ctx context.Context, facts []memory.Fact, progress func(done, total int)) (map[int64][]float32, error) {
	ctx, span := telemetry.StartSpan(ctx, "embedding.embed_facts", attribute.Int("facts", len(facts)))

	out := make(map[int64][]float32, len(facts))
	for i, f := range facts {
		if err := ctx.Err(); err != nil {
			telemetry.EndSpan(span, err)
			return out, err
		}
		if f.ID != 0 {
			if vec := s.Embed(ctx, f.Content); vec != nil {
				out[f.ID] = vec
			}
		}
		if progress != nil {
			progress(i+1, len(facts))
		}
	}

	span.SetAttributes(attribute.Int("embedded", len(out)))
	telemetry.EndSpan(span, nil)
	return out, nil
}

// Status returns the current status.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Ready reports whether the model is loaded.
func (s *Service) Ready() bool {
	return s.Status().State == StateReady
}

// Subscribe registers fn to receive the current status and every later
// transition, in order. The returned function removes fn; it is idempotent.
// fn must not block.
func (s *Service) Subscribe(fn func(Status)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.queue = append(s.queue, delivery{status: s.status, ids: []uint64{id}})
	s.mu.Unlock()
	s.flush()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					break
				}
			}
		})
	}
}

// Close releases the model, if it implements io.Closer, and returns the
// service to StateIdle. A load in flight is discarded when it completes.
func (s *Service) Close() error {
	s.mu.Lock()
	model := s.model
	s.model = nil
	s.gen++
	s.pending = nil
	if s.status.State != StateIdle {
		s.setStatusLocked(Status{State: StateIdle})
	}
	s.mu.Unlock()
	s.flush()

	return closeModel(model)
}

// setStatusLocked records st and queues a notification for every observer.
// The caller must hold mu and call flush after releasing it.
func (s *Service) setStatusLocked(st Status) {
	s.status = st
	s.metrics.SetModelState(string(st.State), States...)

	ids := make([]uint64, len(s.observers))
	for i, o := range s.observers {
		ids[i] = o.id
	}
	s.queue = append(s.queue, delivery{status: st, ids: ids})
}

// flush delivers queued notifications unless another goroutine is already
// doing so.
func (s *Service) flush() {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.queue) > 0 {
		d := s.queue[0]
		s.queue = s.queue[1:]
		fns := s.observerFuncsLocked(d.ids)
		s.mu.Unlock()
		for _, fn := range fns {
			fn(d.status)
		}
		s.mu.Lock()
	}
	s.dispatching = false
	s.mu.Unlock()
}

func (s *Service) observerFuncsLocked(ids []uint64) []func(Status) {
	fns := make([]func(Status), 0, len(ids))
	for _, id := range ids {
		for _, o := range s.observers {
			if o.id == id {
				fns = append(fns, o.fn)
				break
			}
		}
	}
	return fns
}

func describe(m Model) ModelInfo {
	if d, ok := m.(Describer); ok {
		return d.Info()
	}
	return ModelInfo{}
}

func closeModel(m Model) error {
	if c, ok := m.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
