// Package app drives the bot lifecycle: it owns the container, loads the
// cogs, opens the platform connection and pumps events to the dispatcher.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"cogbot/internal/core/cog"
	"cogbot/internal/core/container"
	"cogbot/internal/domain"
	"cogbot/internal/ports/output"
)

const component = "application"

// releaseTimeout bounds singleton release after a failure, when no caller
// context is available.
const releaseTimeout = 10 * time.Second

// releaseGrace bounds the extra wait for handlers and the release that
// follows when Stop's context expired first.
const releaseGrace = 2 * time.Second

var errStreamClosed = errors.New("event stream closed unexpectedly")

// Registrar binds a group of services in the container.
type Registrar func(c *container.Container) error

// StateObserver is told about every state change.
type StateObserver interface {
	SetState(state int)
}

// EventObserver counts inbound events by type.
type EventObserver interface {
	ObserveEvent(eventType string)
}

// Options configures an Application.
type Options struct {
	Registrars   []Registrar
	Catalog      *cog.Catalog
	DisabledCogs []string
	Logger       *zap.Logger
	Observer     StateObserver
}

// Application is the lifecycle state machine
// Created → Starting → Running → Stopping → Stopped, with Failed reachable
// from Starting and Running. It is not restartable.
type Application struct {
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
	// failing is set once the event stream broke; Stop is then rejected.
	failing bool

	container  *container.Container
	sink       output.ErrorSink
	dispatcher *cog.Dispatcher
	loader     *cog.Loader
	conn       output.Connection

	runCtx   context.Context
	cancel   context.CancelFunc
	pump     sync.WaitGroup
	handlers sync.WaitGroup
}

func New(opts Options) *Application {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Application{
		opts:   opts,
		logger: logger.Named(component),
		state:  StateCreated,
		done:   make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (a *Application) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Status returns the name of the current state.
func (a *Application) Status() string { return a.State().String() }

// Alive reports whether the application is serving events. It turns false
// as soon as the event stream breaks, before Failed is reached.
func (a *Application) Alive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == StateRunning && !a.failing
}

// Err returns the failure that moved the application to Failed.
func (a *Application) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Wait is closed once the application reaches a terminal state.
func (a *Application) Wait() <-chan struct{} { return a.done }

// Container exposes the container built by Start, nil before.
func (a *Application) Container() *container.Container {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.container
}

// Loader exposes the cog loader built by Start, nil before.
func (a *Application) Loader() *cog.Loader {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loader
}

func (a *Application) transition(op string, from, to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != from || a.failing {
		return &domain.InvalidStateTransitionError{Op: op, From: a.state.String()}
	}
	a.setState(to)
	return nil
}

// setState must be called with a.mu held.
func (a *Application) setState(s State) {
	a.logger.Info("state changed", zap.Stringer("from", a.state), zap.Stringer("to", s))
	a.state = s
	if a.opts.Observer != nil {
		a.opts.Observer.SetState(int(s))
	}
	if s.Terminal() {
		close(a.done)
	}
}

// Start builds the container, loads the cogs and opens the platform
// connection. The application is Running only once the handshake is done.
// Any failure before that releases what was built and leaves the
// application Failed.
func (a *Application) Start(ctx context.Context) error {
	if err := a.transition("start", StateCreated, StateStarting); err != nil {
		return err
	}

	c := container.New()
	a.mu.Lock()
	a.container = c
	a.mu.Unlock()

	for _, register := range a.opts.Registrars {
		if err := register(c); err != nil {
			return a.failStart(fatal("register bindings", err))
		}
	}

	sink, err := container.Get[output.ErrorSink](c, IDErrorSink)
	if err != nil {
		return a.failStart(fatal("resolve error sink", err))
	}

	dispatcher, err := a.newDispatcher(sink)
	if err != nil {
		return a.failStart(fatal("build dispatcher", err))
	}
	loader := cog.NewLoader(c, dispatcher, sink, a.logger)
	if err := errors.Join(
		c.RegisterInstance(IDDispatcher, dispatcher),
		c.RegisterInstance(IDLoader, loader),
	); err != nil {
		return a.failStart(fatal("bind dispatcher", err))
	}

	a.mu.Lock()
	a.sink, a.dispatcher, a.loader = sink, dispatcher, loader
	a.mu.Unlock()

	if a.opts.Catalog != nil {
		report := loader.LoadAll(ctx, a.opts.Catalog.Discover(a.opts.DisabledCogs...))
		if rec, ok := a.optional(IDMetrics).(interface{ SetCogs(loaded, failed int) }); ok {
			rec.SetCogs(len(report.Loaded), len(report.Failed))
		}
	}

	conn, err := container.Get[output.Connection](c, IDConnection)
	if err != nil {
		return a.failStart(fatal("resolve connection", err))
	}
	if err := conn.Open(ctx); err != nil {
		var connErr *domain.ConnectionError
		if !errors.As(err, &connErr) {
			err = &domain.ConnectionError{Op: "open", Err: err}
		}
		return a.failStart(err)
	}

	events, _ := a.optional(IDMetrics).(EventObserver)

	runCtx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.conn = conn
	a.runCtx, a.cancel = runCtx, cancel
	a.setState(StateRunning)
	a.mu.Unlock()

	a.pump.Add(1)
	go a.run(conn, events)

	a.syncCommands(ctx, conn)
	return nil
}

func (a *Application) newDispatcher(sink output.ErrorSink) (*cog.Dispatcher, error) {
	var opts []cog.Option
	if v := a.optional(IDConfig); v != nil {
		cfg, ok := v.(output.ConfigSource)
		if !ok {
			return nil, fmt.Errorf("%s is a %T, not a config source", IDConfig, v)
		}
		opts = append(opts, cog.WithAllowlist(cfg))
	}
	if v := a.optional(IDTranslator); v != nil {
		tr, ok := v.(output.Translator)
		if !ok {
			return nil, fmt.Errorf("%s is a %T, not a translator", IDTranslator, v)
		}
		opts = append(opts, cog.WithTranslator(tr))
	}
	if rec, ok := a.optional(IDMetrics).(cog.Recorder); ok {
		opts = append(opts, cog.WithRecorder(rec))
	}
	return cog.NewDispatcher(sink, a.logger, opts...), nil
}

// optional resolves id when it is bound, nil otherwise.
func (a *Application) optional(id string) any {
	if !a.container.Has(id) {
		return nil
	}
	v, err := a.container.Resolve(id)
	if err != nil {
		a.logger.Warn("optional binding unavailable", zap.String("id", id), zap.Error(err))
		return nil
	}
	return v
}

// syncCommands registers the allowed commands in every approved guild and
// clears the global ones. Failures are reported, never fatal.
func (a *Application) syncCommands(ctx context.Context, conn output.Connection) {
	cfg, ok := a.optional(IDConfig).(output.ConfigSource)
	if !ok {
		return
	}
	for _, guildID := range cfg.ApprovedGuilds() {
		specs := a.dispatcher.SpecsForGuild(guildID)
		if err := conn.SyncCommands(ctx, guildID, specs); err != nil {
			a.report(domain.SeverityError, "command sync failed",
				&domain.ConnectionError{Op: "sync commands", Err: err}, guildID)
			continue
		}
		a.logger.Info("commands synced", zap.String("guild_id", guildID), zap.Int("count", len(specs)))
	}
	if err := conn.SyncCommands(ctx, "", nil); err != nil {
		a.report(domain.SeverityWarning, "global command cleanup failed",
			&domain.ConnectionError{Op: "clear global commands", Err: err}, "")
	}
}

// run pumps events until the stream closes. Each event is dispatched on
// its own goroutine.
func (a *Application) run(conn output.Connection, events EventObserver) {
	defer a.pump.Done()

	for ev := range conn.Events() {
		if events != nil {
			events.ObserveEvent(string(ev.Type))
		}
		a.handlers.Add(1)
		go func(ev output.Event) {
			defer a.handlers.Done()
			a.dispatcher.Dispatch(a.runCtx, ev)
		}(ev)
	}

	cause := conn.Err()
	if cause == nil {
		cause = errStreamClosed
	}

	a.mu.Lock()
	if a.state != StateRunning {
		a.mu.Unlock()
		return
	}
	err := &domain.ConnectionError{Op: "stream", Err: cause}
	a.err = err
	a.failing = true
	a.mu.Unlock()

	a.report(domain.SeverityFatal, "platform connection lost", err, "")
	a.cancel()
	a.handlers.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if relErr := a.container.Close(ctx); relErr != nil {
		a.logger.Error("release after connection loss", zap.Error(relErr))
	}

	a.mu.Lock()
	a.setState(StateFailed)
	a.mu.Unlock()
}

// Stop cancels in-flight handlers, closes the connection, waits for the
// handlers within ctx and releases the singletons in reverse creation order.
func (a *Application) Stop(ctx context.Context) error {
	if err := a.transition("stop", StateRunning, StateStopping); err != nil {
		return err
	}

	a.cancel()
	var errs []error
	if err := a.conn.Close(); err != nil {
		errs = append(errs, &domain.ConnectionError{Op: "close", Err: err})
	}

	drained := make(chan struct{})
	go func() {
		a.pump.Wait()
		a.handlers.Wait()
		close(drained)
	}()
	releaseCtx := ctx
	select {
	case <-drained:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for handlers: %w", ctx.Err()))
		// Handlers still hold singletons; give them a last grace period
		// before releasing, then release with a fresh budget.
		grace, cancel := context.WithTimeout(context.Background(), releaseGrace)
		select {
		case <-drained:
		case <-grace.Done():
			a.logger.Warn("releasing singletons with handlers still running")
		}
		cancel()
		var release context.CancelFunc
		releaseCtx, release = context.WithTimeout(context.Background(), releaseGrace)
		defer release()
	}

	if err := a.container.Close(releaseCtx); err != nil {
		errs = append(errs, err)
	}

	a.mu.Lock()
	a.setState(StateStopped)
	a.mu.Unlock()
	return errors.Join(errs...)
}

func (a *Application) failStart(err error) error {
	a.logger.Error("start failed", zap.Error(err))
	a.report(domain.SeverityFatal, "application failed to start", err, "")

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if relErr := a.container.Close(ctx); relErr != nil {
		a.logger.Error("release after failed start", zap.Error(relErr))
	}

	a.mu.Lock()
	a.err = err
	a.setState(StateFailed)
	a.mu.Unlock()
	return err
}

// report sends an envelope when a sink is available, or logs it.
func (a *Application) report(sev domain.Severity, msg string, err error, guildID string) {
	a.mu.Lock()
	sink := a.sink
	a.mu.Unlock()
	if sink == nil {
		return
	}
	sink.Report(domain.NewEnvelope(component, sev, msg, err).WithContext(guildID, "", ""))
}

func fatal(op string, err error) error {
	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		return err
	}
	return &domain.ConfigurationError{Op: op, Err: err}
}
