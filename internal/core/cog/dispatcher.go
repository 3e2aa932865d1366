package cog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"cogbot/internal/domain"
	"cogbot/internal/ports/output"
)

const dispatcherComponent = "dispatcher"

// Allowlist reports which commands a guild has enabled.
type Allowlist interface {
	CommandsForGuild(guildID string) (names []string, restricted bool)
}

// Recorder receives one observation per handler invocation.
type Recorder interface {
	ObserveCommand(command, status string, d time.Duration)
}

// DuplicateTriggerError is returned when a command trigger is already owned
// by another handler.
type DuplicateTriggerError struct {
	Trigger Trigger
	Owner   string
}

func (e *DuplicateTriggerError) Error() string {
	return fmt.Sprintf("trigger %s already registered by cog %q", e.Trigger, e.Owner)
}

type route struct {
	cog     string
	handler CommandHandler
}

// Dispatcher routes events to registered handlers. Handler failures are
// contained: they are reported to the error sink and never returned.
type Dispatcher struct {
	sink       output.ErrorSink
	logger     *zap.Logger
	translator output.Translator
	allowlist  Allowlist
	recorder   Recorder

	mu     sync.RWMutex
	routes map[Trigger][]route
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTranslator localizes the generic failure replies.
func WithTranslator(t output.Translator) Option {
	return func(d *Dispatcher) { d.translator = t }
}

// WithAllowlist restricts commands per guild.
func WithAllowlist(a Allowlist) Option {
	return func(d *Dispatcher) { d.allowlist = a }
}

// WithRecorder records invocation metrics.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

func NewDispatcher(sink output.ErrorSink, logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:   sink,
		logger: logger.Named(dispatcherComponent),
		routes: make(map[Trigger][]route),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds every handler of a cog, or none of them if one command
// trigger is already taken.
func (d *Dispatcher) Register(cogName string, handlers []CommandHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[Trigger]bool, len(handlers))
	for _, h := range handlers {
		t := h.Trigger()
		if !t.exclusive() {
			continue
		}
		if seen[t] {
			return &DuplicateTriggerError{Trigger: t, Owner: cogName}
		}
		seen[t] = true
		if existing := d.routes[t]; len(existing) > 0 {
			return &DuplicateTriggerError{Trigger: t, Owner: existing[0].cog}
		}
	}
	for _, h := range handlers {
		t := h.Trigger()
		d.routes[t] = append(d.routes[t], route{cog: cogName, handler: h})
	}
	return nil
}

// Unregister removes every handler owned by cogName and returns how many
// were removed.
func (d *Dispatcher) Unregister(cogName string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for t, routes := range d.routes {
		kept := slices.DeleteFunc(routes, func(r route) bool { return r.cog == cogName })
		removed += len(routes) - len(kept)
		if len(kept) == 0 {
			delete(d.routes, t)
		} else {
			d.routes[t] = kept
		}
	}
	return removed
}

// Specs returns the platform registration of every command handler,
// sorted by name.
func (d *Dispatcher) Specs() []output.CommandSpec {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var specs []output.CommandSpec
	for _, routes := range d.routes {
		for _, r := range routes {
			if sp, ok := r.handler.(SpecProvider); ok {
				specs = append(specs, sp.Spec())
			}
		}
	}
	slices.SortFunc(specs, func(a, b output.CommandSpec) int { return strings.Compare(a.Name, b.Name) })
	return specs
}

// SpecsForGuild filters Specs by the guild allowlist.
func (d *Dispatcher) SpecsForGuild(guildID string) []output.CommandSpec {
	specs := d.Specs()
	if d.allowlist == nil {
		return specs
	}
	names, restricted := d.allowlist.CommandsForGuild(guildID)
	if !restricted {
		return specs
	}
	return slices.DeleteFunc(specs, func(s output.CommandSpec) bool { return !slices.Contains(names, s.Name) })
}

// Dispatch runs every handler matching ev and reports whether any matched.
// Handlers run sequentially on the calling goroutine.
func (d *Dispatcher) Dispatch(ctx context.Context, ev output.Event) bool {
	d.mu.RLock()
	routes := slices.Clone(d.routes[triggerOf(ev)])
	d.mu.RUnlock()

	if len(routes) == 0 {
		return false
	}
	if ev.Type == output.EventCommand && !d.allowed(ev) {
		d.logger.Debug("command not enabled for guild",
			zap.String("command", ev.Command),
			zap.String("guild_id", ev.GuildID))
		return false
	}
	for _, r := range routes {
		d.invoke(ctx, ev, r)
	}
	return true
}

func (d *Dispatcher) allowed(ev output.Event) bool {
	if d.allowlist == nil || ev.GuildID == "" {
		return true
	}
	names, restricted := d.allowlist.CommandsForGuild(ev.GuildID)
	return !restricted || slices.Contains(names, ev.Command)
}

func (d *Dispatcher) invoke(ctx context.Context, ev output.Event, r route) {
	start := time.Now()
	res, err := safeInvoke(ctx, ev, r.handler)
	elapsed := time.Since(start)

	if err != nil {
		d.observe(r.handler.Name(), "error", elapsed)
		cause := &domain.CommandExecutionError{Command: r.handler.Name(), Err: err}
		env := domain.NewEnvelope(dispatcherComponent, domain.SeverityError,
			fmt.Sprintf("handler %s of cog %s failed", r.handler.Name(), r.cog), cause).
			WithContext(ev.GuildID, ev.UserID, ev.Command)
		d.sink.Report(env)
		d.replyFailure(ctx, ev, err)
		return
	}

	d.observe(r.handler.Name(), "ok", elapsed)
	if res.Reply == nil || ev.Replier == nil {
		return
	}
	if err := ev.Replier.Reply(ctx, *res.Reply); err != nil {
		cause := &domain.ConnectionError{Op: "reply", Err: err}
		d.sink.Report(domain.NewEnvelope(dispatcherComponent, domain.SeverityWarning,
			"reply not delivered", cause).WithContext(ev.GuildID, ev.UserID, ev.Command))
	}
}

func (d *Dispatcher) observe(name, status string, elapsed time.Duration) {
	if d.recorder != nil {
		d.recorder.ObserveCommand(name, status, elapsed)
	}
}

// replyFailure acknowledges a failed command with a generic message. A
// delivery failure here is only logged so a failing handler produces a
// single envelope.
func (d *Dispatcher) replyFailure(ctx context.Context, ev output.Event, err error) {
	if ev.Type != output.EventCommand || ev.Replier == nil {
		return
	}
	key := "error.generic"
	var persErr *domain.PersistenceError
	if errors.As(err, &persErr) && persErr.Timeout() {
		key = "error.timeout"
	}
	resp := output.Response{Content: d.text(ev.Locale, key), Ephemeral: true}
	if replyErr := ev.Replier.Reply(ctx, resp); replyErr != nil {
		d.logger.Warn("failure reply not delivered",
			zap.String("command", ev.Command),
			zap.Error(replyErr))
	}
}

func (d *Dispatcher) text(locale, key string) string {
	if d.translator != nil {
		return d.translator.T(locale, key, nil)
	}
	if key == "error.timeout" {
		return "The request timed out, please try again later."
	}
	return "Something went wrong while running this command."
}

func safeInvoke(ctx context.Context, ev output.Event, h CommandHandler) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Invoke(ctx, ev)
}
