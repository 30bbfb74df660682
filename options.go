package arena

import (
	"github.com/go-kit/log"

	"github.com/pavanmanishd/slotarena/internal/layout"
)

// BufferSource provides the backing memory of a new Arena. It is called with
// the total number of bytes needed, which includes a few bytes of slack past
// the arena's capacity. The returned slice must be at least that long and its
// first byte must be aligned to MaxAlign.
type BufferSource func(size int) ([]byte, error)

// Option configures an Arena or a GrowingArena.
type Option func(*options)

type options struct {
	logger   log.Logger
	metrics  *Metrics
	source   BufferSource
	maxBytes int
}

// WithLogger sets the logger used to report growth and failed teardowns.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithBufferSource replaces the default buffer allocation.
func WithBufferSource(source BufferSource) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithMaxBytes caps the summed capacity of all arenas of a GrowingArena.
// Zero means no limit. It has no effect on a standalone Arena.
func WithMaxBytes(n int) Option {
	return func(o *options) {
		o.maxBytes = n
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: log.NewNopLogger(),
		source: defaultBufferSource,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewNopLogger()
	}
	if o.source == nil {
		o.source = defaultBufferSource
	}
	return o
}

func defaultBufferSource(size int) ([]byte, error) {
	return layout.NewBuffer(size - layout.Slack), nil
}
