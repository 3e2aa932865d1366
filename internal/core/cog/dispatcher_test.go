package cog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cogbot/internal/domain"
	"cogbot/internal/ports/output"
)

type fakeAllowlist map[string][]string

func (a fakeAllowlist) CommandsForGuild(guildID string) ([]string, bool) {
	names, ok := a[guildID]
	return names, ok
}

type fakeTranslator struct{}

func (fakeTranslator) T(locale, key string, _ map[string]any) string {
	return locale + ":" + key
}

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *fakeRecorder) ObserveCommand(command, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, command+"="+status)
}

func failing(err error) InvokeFunc {
	return func(context.Context, output.Event) (Result, error) { return Result{}, err }
}

func TestDispatch_HandlerErrorIsContained(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, zap.NewNop(), WithTranslator(fakeTranslator{}))
	require.NoError(t, d.Register("broken", []CommandHandler{
		Command(output.CommandSpec{Name: "boom"}, failing(errors.New("kaput"))),
	}))

	replier := &recordingReplier{}
	ev := commandEvent("boom", replier)
	ev.Locale = "fr"

	assert.NotPanics(t, func() { d.Dispatch(context.Background(), ev) })

	envelopes := sink.all()
	require.Len(t, envelopes, 1)
	env := envelopes[0]
	assert.Equal(t, domain.KindCommandExecution, env.Origin)
	assert.Equal(t, "dispatcher", env.Component)
	assert.Equal(t, "g1", env.GuildID)
	assert.Equal(t, "u1", env.UserID)
	assert.Equal(t, "boom", env.Command)
	assert.EqualError(t, errors.Unwrap(env.Cause), "kaput")

	assert.Equal(t, []output.Response{{Content: "fr:error.generic", Ephemeral: true}}, replier.all())
}

func TestDispatch_PanicIsContained(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, zap.NewNop())
	require.NoError(t, d.Register("broken", []CommandHandler{
		Command(output.CommandSpec{Name: "panic"}, func(context.Context, output.Event) (Result, error) {
			var m map[string]int
			m["x"] = 1
			return Result{}, nil
		}),
	}))

	replier := &recordingReplier{}
	assert.NotPanics(t, func() { d.Dispatch(context.Background(), commandEvent("panic", replier)) })

	envelopes := sink.all()
	require.Len(t, envelopes, 1)
	assert.Equal(t, domain.KindCommandExecution, envelopes[0].Origin)
	assert.Contains(t, envelopes[0].Cause.Error(), "panic")
	require.Len(t, replier.all(), 1)
	assert.Equal(t, "Something went wrong while running this command.", replier.all()[0].Content)
}

func TestDispatch_PersistenceTimeoutInHandler(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, zap.NewNop(), WithTranslator(fakeTranslator{}))
	timeout := &domain.PersistenceError{
		Op:         "find",
		Collection: "guild_settings",
		Err:        fmt.Errorf("%w: %w", domain.ErrTimeout, context.DeadlineExceeded),
	}
	require.NoError(t, d.Register("settings", []CommandHandler{
		Command(output.CommandSpec{Name: "settings"}, failing(fmt.Errorf("load setting: %w", timeout))),
	}))

	replier := &recordingReplier{}
	ev := commandEvent("settings", replier)
	ev.Locale = "en"
	d.Dispatch(context.Background(), ev)

	envelopes := sink.all()
	require.Len(t, envelopes, 1)
	assert.Equal(t, domain.KindCommandExecution, envelopes[0].Origin)
	assert.ErrorIs(t, envelopes[0].Cause, domain.ErrTimeout)
	var persErr *domain.PersistenceError
	assert.ErrorAs(t, envelopes[0].Cause, &persErr)

	assert.Equal(t, []output.Response{{Content: "en:error.timeout", Ephemeral: true}}, replier.all())
}

func TestDispatch_UnmatchedEventIsIgnored(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, zap.NewNop())
	replier := &recordingReplier{}

	assert.False(t, d.Dispatch(context.Background(), commandEvent("nothing", replier)))
	assert.False(t, d.Dispatch(context.Background(), output.Event{Type: output.EventGuildJoin}))
	assert.Empty(t, sink.all())
	assert.Empty(t, replier.all())
}

func TestDispatch_Allowlist(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, zap.NewNop(), WithAllowlist(fakeAllowlist{
		"g1": {"ping"},
		"g2": {},
	}))
	require.NoError(t, d.Register("utility", []CommandHandler{
		Command(output.CommandSpec{Name: "ping"}, echo("pong")),
		Command(output.CommandSpec{Name: "cogs"}, echo("list")),
	}))

	tests := []struct {
		guild   string
		command string
		want    bool
	}{
		{"g1", "ping", true},
		{"g1", "cogs", false},
		{"g2", "ping", false},
		{"g3", "cogs", true},
	}
	for _, tt := range tests {
		t.Run(tt.guild+"/"+tt.command, func(t *testing.T) {
			ev := commandEvent(tt.command, &recordingReplier{})
			ev.GuildID = tt.guild
			assert.Equal(t, tt.want, d.Dispatch(context.Background(), ev))
		})
	}

	names := func(specs []output.CommandSpec) []string {
		var out []string
		for _, s := range specs {
			out = append(out, s.Name)
		}
		return out
	}
	assert.Equal(t, []string{"cogs", "ping"}, names(d.Specs()))
	assert.Equal(t, []string{"ping"}, names(d.SpecsForGuild("g1")))
	assert.Empty(t, d.SpecsForGuild("g2"))
	assert.Equal(t, []string{"cogs", "ping"}, names(d.SpecsForGuild("g3")))
}

func TestDispatch_EventFanOut(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, zap.NewNop())
	require.NoError(t, d.Register("guard", []CommandHandler{
		Listener("leave-unapproved", output.EventGuildJoin, echo("guard")),
	}))
	require.NoError(t, d.Register("audit", []CommandHandler{
		Listener("log-join", output.EventGuildJoin, failing(errors.New("audit down"))),
	}))

	replier := &recordingReplier{}
	assert.True(t, d.Dispatch(context.Background(), output.Event{Type: output.EventGuildJoin, GuildID: "g9", Replier: replier}))

	// The failing listener does not prevent the other one; no generic
	// reply for non-command events.
	assert.Equal(t, []output.Response{{Content: "guard"}}, replier.all())
	require.Len(t, sink.all(), 1)
	assert.Equal(t, "g9", sink.all()[0].GuildID)
}

func TestDispatch_ReplyFailureIsReported(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, zap.NewNop())
	require.NoError(t, d.Register("utility", []CommandHandler{
		Command(output.CommandSpec{Name: "ping"}, echo("pong")),
	}))

	d.Dispatch(context.Background(), commandEvent("ping", &recordingReplier{err: errors.New("unknown interaction")}))

	envelopes := sink.all()
	require.Len(t, envelopes, 1)
	assert.Equal(t, domain.KindConnection, envelopes[0].Origin)
	assert.Equal(t, domain.SeverityWarning, envelopes[0].Severity)
}

func TestDispatch_RecordsMetrics(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewDispatcher(&recordingSink{}, zap.NewNop(), WithRecorder(rec))
	require.NoError(t, d.Register("c", []CommandHandler{
		Command(output.CommandSpec{Name: "ok"}, echo("ok")),
		Command(output.CommandSpec{Name: "ko"}, failing(errors.New("x"))),
	}))

	d.Dispatch(context.Background(), commandEvent("ok", nil))
	d.Dispatch(context.Background(), commandEvent("ko", nil))

	assert.Equal(t, []string{"ok=ok", "ko=error"}, rec.statuses)
}

func TestDispatch_HandlerObservesCancellation(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, zap.NewNop())
	require.NoError(t, d.Register("slow", []CommandHandler{
		Command(output.CommandSpec{Name: "slow"}, func(ctx context.Context, _ output.Event) (Result, error) {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(5 * time.Second):
				return Reply(output.Response{Content: "done"}), nil
			}
		}),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	d.Dispatch(ctx, commandEvent("slow", nil))
	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, sink.all(), 1)
	assert.ErrorIs(t, sink.all()[0].Cause, context.Canceled)
}

func TestUnregister(t *testing.T) {
	d := NewDispatcher(&recordingSink{}, zap.NewNop())
	require.NoError(t, d.Register("a", []CommandHandler{
		Command(output.CommandSpec{Name: "one"}, echo("1")),
		Listener("l", output.EventMemberJoin, echo("l")),
	}))
	require.NoError(t, d.Register("b", []CommandHandler{
		Listener("l", output.EventMemberJoin, echo("l")),
	}))

	assert.Equal(t, 2, d.Unregister("a"))
	assert.Equal(t, 0, d.Unregister("a"))
	assert.True(t, d.Dispatch(context.Background(), output.Event{Type: output.EventMemberJoin}))
	assert.False(t, d.Dispatch(context.Background(), commandEvent("one", nil)))
}
