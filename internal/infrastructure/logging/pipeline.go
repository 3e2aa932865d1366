package logging

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"cogbot/internal/domain"
	"cogbot/internal/ports/output"
)

var _ output.ErrorSink = (*Pipeline)(nil)

// EnvelopeObserver is notified for each envelope written or dropped.
type EnvelopeObserver interface {
	ObserveEnvelope(origin string)
	ObserveDropped()
}

// Pipeline is a bounded queue of error envelopes drained by one goroutine
// into the logger. Producers never wait: when the queue is full the
// envelope is dropped and counted.
type Pipeline struct {
	logger   *zap.Logger
	observer EnvelopeObserver
	queue    chan domain.ErrorEnvelope
	done     chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	once    sync.Once
}

// NewPipeline starts a pipeline with the given queue capacity. observer may be nil.
func NewPipeline(logger *zap.Logger, capacity int, observer EnvelopeObserver) *Pipeline {
	p := newPipeline(logger, capacity, observer)
	p.start()
	return p
}

func newPipeline(logger *zap.Logger, capacity int, observer EnvelopeObserver) *Pipeline {
	if capacity <= 0 {
		capacity = 256
	}
	return &Pipeline{
		logger:   logger.Named("errors"),
		observer: observer,
		queue:    make(chan domain.ErrorEnvelope, capacity),
		done:     make(chan struct{}),
	}
}

func (p *Pipeline) start() {
	go func() {
		defer close(p.done)
		for env := range p.queue {
			p.write(env)
		}
	}()
}

// Report enqueues env without blocking.
func (p *Pipeline) Report(env domain.ErrorEnvelope) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop()
		return
	}
	select {
	case p.queue <- env:
	default:
		p.drop()
	}
}

func (p *Pipeline) drop() {
	p.dropped.Add(1)
	if p.observer != nil {
		p.observer.ObserveDropped()
	}
}

// Dropped returns how many envelopes were discarded.
func (p *Pipeline) Dropped() uint64 { return p.dropped.Load() }

// Close stops accepting envelopes and waits until the queue is drained or
// ctx is done.
func (p *Pipeline) Close(ctx context.Context) error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})
	select {
	case <-p.done:
		_ = p.logger.Sync()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) write(env domain.ErrorEnvelope) {
	fields := []zap.Field{
		zap.String("envelope_id", env.ID.String()),
		zap.String("origin", string(env.Origin)),
		zap.String("component", env.Component),
		zap.String("severity", env.Severity.String()),
		zap.Time("occurred_at", env.OccurredAt),
	}
	if env.GuildID != "" {
		fields = append(fields, zap.String("guild_id", env.GuildID))
	}
	if env.UserID != "" {
		fields = append(fields, zap.String("user_id", env.UserID))
	}
	if env.Command != "" {
		fields = append(fields, zap.String("command", env.Command))
	}
	if env.Cause != nil {
		fields = append(fields, zap.Error(env.Cause))
	}

	if env.Severity == domain.SeverityWarning {
		p.logger.Warn(env.Message, fields...)
	} else {
		p.logger.Error(env.Message, fields...)
	}
	if p.observer != nil {
		p.observer.ObserveEnvelope(string(env.Origin))
	}
}
