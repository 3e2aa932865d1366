// Package discord adapts a discordgo session to the platform connection
// used by the application.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"cogbot/internal/domain"
	"cogbot/internal/ports/output"
	pkgdiscord "cogbot/pkg/discord"
)

const component = "discord"

var _ output.Connection = (*Connection)(nil)

var errNotOpen = errors.New("session is not open")

// Connection owns the gateway session. Gateway events are converted and
// queued on Events; discordgo reconnects on its own and every disconnect is
// reported to the error sink.
type Connection struct {
	session *discordgo.Session
	sink    output.ErrorSink
	logger  *zap.Logger

	events chan output.Event
	stop   chan struct{}

	mu       sync.RWMutex
	closed   bool
	open     bool
	err      error
	removers []func()
	once     sync.Once
}

// NewConnection creates the session without connecting. bufferSize bounds
// the events queued before the consumer picks them up. A non-empty presence
// is shown as the bot's activity; it is part of every identify, so it
// survives reconnects.
func NewConnection(token, presence string, sink output.ErrorSink, logger *zap.Logger, bufferSize int) (*Connection, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, &domain.ConnectionError{Op: "create session", Err: err}
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	if presence != "" {
		s.Identify.Presence = discordgo.GatewayStatusUpdate{
			Game:   discordgo.Activity{Name: presence, Type: discordgo.ActivityTypeGame},
			Status: string(discordgo.StatusOnline),
		}
	}
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Connection{
		session: s,
		sink:    sink,
		logger:  logger.Named(component),
		events:  make(chan output.Event, bufferSize),
		stop:    make(chan struct{}),
	}, nil
}

// Open registers the gateway handlers and performs the handshake.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return &domain.ConnectionError{Op: "open", Err: errors.New("connection closed")}
	}
	c.removers = append(c.removers,
		c.session.AddHandler(c.onInteraction),
		c.session.AddHandler(c.onGuildCreate),
		c.session.AddHandler(c.onMemberAdd),
		c.session.AddHandler(c.onDisconnect),
		c.session.AddHandler(c.onResumed),
	)
	c.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.session.Open() }()

	select {
	case err := <-done:
		if err != nil {
			return &domain.ConnectionError{Op: "handshake", Err: err}
		}
	case <-ctx.Done():
		go func() {
			if err := <-done; err == nil {
				_ = c.session.Close()
			}
		}()
		return &domain.ConnectionError{Op: "handshake", Err: ctx.Err()}
	}

	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
	if u := c.session.State.User; u != nil {
		c.logger.Info("gateway ready", zap.String("user", u.Username), zap.String("user_id", u.ID))
	}
	return nil
}

func (c *Connection) Events() <-chan output.Event { return c.events }

func (c *Connection) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Connection) applicationID() (string, error) {
	c.mu.RLock()
	open := c.open
	c.mu.RUnlock()
	if !open || c.session.State.User == nil {
		return "", errNotOpen
	}
	return c.session.State.User.ID, nil
}

// SyncCommands replaces the commands of guildID with specs. An empty guildID
// targets the global commands.
func (c *Connection) SyncCommands(ctx context.Context, guildID string, specs []output.CommandSpec) error {
	appID, err := c.applicationID()
	if err != nil {
		return err
	}
	cmds := pkgdiscord.BuildCommands(specs)
	if _, err := c.session.ApplicationCommandBulkOverwrite(appID, guildID, cmds, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("overwrite commands of guild %q: %w", guildID, err)
	}
	return nil
}

func (c *Connection) LeaveGuild(ctx context.Context, guildID string) error {
	if err := c.session.GuildLeave(guildID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("leave guild %q: %w", guildID, err)
	}
	return nil
}

func (c *Connection) SendMessage(ctx context.Context, channelID string, msg output.Response) error {
	_, err := c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: msg.Content,
		Embeds:  pkgdiscord.BuildEmbeds(msg.Embed),
	}, discordgo.WithContext(ctx))
	if err != nil {
		if pkgdiscord.IsPermissionError(err) {
			c.logger.Warn("missing permission to post", zap.String("channel_id", channelID))
		}
		return fmt.Errorf("send message to %q: %w", channelID, err)
	}
	return nil
}

func (c *Connection) Latency() time.Duration {
	return c.session.HeartbeatLatency()
}

// Close stops event delivery and closes the gateway. It is idempotent.
func (c *Connection) Close() error {
	var err error
	c.once.Do(func() {
		close(c.stop)

		c.mu.Lock()
		c.closed = true
		for _, remove := range c.removers {
			remove()
		}
		c.removers = nil
		open := c.open
		c.open = false
		close(c.events)
		c.mu.Unlock()

		if open {
			err = c.session.Close()
		}
	})
	return err
}

// fail records a terminal stream error and closes the event stream.
func (c *Connection) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	_ = c.Close()
}

// emit queues ev unless the connection is closing.
func (c *Connection) emit(ev output.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	case <-c.stop:
	}
}

func (c *Connection) onDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	c.mu.RLock()
	closing := c.closed
	c.mu.RUnlock()
	if closing {
		return
	}
	if !c.session.ShouldReconnectOnError {
		c.fail(errors.New("gateway disconnected"))
		return
	}
	c.sink.Report(domain.NewEnvelope(component, domain.SeverityWarning, "gateway disconnected, reconnecting",
		&domain.ConnectionError{Op: "gateway", Err: errors.New("disconnected")}))
}

func (c *Connection) onResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	c.logger.Info("gateway session resumed")
}
