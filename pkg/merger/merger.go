package merger

import (
	"log/slog"
	"sync"

	"github.com/invoicestream/merger/pkg/merger/archive"
	"github.com/invoicestream/merger/pkg/merger/bus"
	"github.com/invoicestream/merger/pkg/merger/errors"
	"github.com/invoicestream/merger/pkg/merger/observability"
	"github.com/invoicestream/merger/pkg/merger/record"
	"github.com/invoicestream/merger/pkg/merger/store"
)

// Codecs binds every stream to its wire format. The zero value is not
// usable; use DefaultCodecs for the JSON binding.
type Codecs struct {
	Client     record.Codec[record.Client]
	Command    record.Codec[record.Command]
	Product    record.Codec[record.Product]
	Invoice    record.Codec[record.Invoice]
	DeadLetter record.Codec[record.DeadLetter]
}

// DefaultCodecs returns the JSON binding for every stream.
func DefaultCodecs() Codecs {
	return Codecs{
		Client:     record.JSONCodec[record.Client]{},
		Command:    record.JSONCodec[record.Command]{},
		Product:    record.JSONCodec[record.Product]{},
		Invoice:    record.JSONCodec[record.Invoice]{},
		DeadLetter: record.JSONCodec[record.DeadLetter]{},
	}
}

// Engine is the correlation engine. Create with New; the zero value is
// not usable.
type Engine struct {
	store   *store.Store
	pub     bus.Publisher
	codecs  Codecs
	retry   errors.RetryConfig
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	archive archive.Store

	// inflight tracks command ids with a running correlation job so
	// duplicate deliveries don't spawn a second one.
	inflightMu sync.Mutex
	inflight   map[int32]struct{}

	jobs sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Nil disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRetryConfig sets the backoff policy shared by every resolution
// attempt and by publish retries.
func WithRetryConfig(cfg errors.RetryConfig) Option {
	return func(e *Engine) {
		e.retry = cfg
	}
}

// WithCodecs overrides the default JSON codecs.
func WithCodecs(c Codecs) Option {
	return func(e *Engine) {
		e.codecs = c
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithSpans sets the trace span manager.
func WithSpans(s observability.SpanManager) Option {
	return func(e *Engine) {
		e.spans = s
	}
}

// WithArchive sets an optional persistent archive for dead-lettered
// records. Without one, dead letters only exist on the output stream.
func WithArchive(a archive.Store) Option {
	return func(e *Engine) {
		e.archive = a
	}
}

// WithStore sets the correlation store. Mainly useful for tests that
// want to inspect correlation state.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// New creates an engine publishing to pub.
func New(pub bus.Publisher, opts ...Option) *Engine {
	e := &Engine{
		store:    store.New(),
		pub:      pub,
		codecs:   DefaultCodecs(),
		retry:    errors.DefaultRetry,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		inflight: make(map[int32]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the correlation store for inspection.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Wait blocks until every spawned correlation job has run to completion.
// Jobs are never cancelled; they always end in an emitted invoice, a
// dead-lettered record, or a dropped duplicate.
func (e *Engine) Wait() {
	e.jobs.Wait()
}

// tryAcquire marks a command id as having a running job.
// Returns false if one is already running.
func (e *Engine) tryAcquire(commandID int32) bool {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()

	if _, ok := e.inflight[commandID]; ok {
		return false
	}
	e.inflight[commandID] = struct{}{}
	return true
}

// release clears the running-job mark for a command id.
func (e *Engine) release(commandID int32) {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()
	delete(e.inflight, commandID)
}
