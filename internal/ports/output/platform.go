package output

import (
	"context"
	"time"
)

// EventType identifies what an inbound platform event is about.
type EventType string

const (
	EventCommand    EventType = "command"
	EventGuildJoin  EventType = "guild_join"
	EventMemberJoin EventType = "member_join"
)

// Embed is a platform-neutral rich message block.
type Embed struct {
	Title       string
	Description string
	Color       int
	ImageURL    string
	Footer      string
}

// Response is an outbound message.
type Response struct {
	Content   string
	Ephemeral bool
	Embed     *Embed
}

// Replier answers the context an event was triggered from.
type Replier interface {
	Reply(ctx context.Context, resp Response) error
}

// Event is one inbound platform event.
type Event struct {
	Type      EventType
	GuildID   string
	ChannelID string
	UserID    string
	Username  string
	Locale    string
	// Manager reports whether the user may manage the guild.
	Manager bool
	// Command is the command name for EventCommand.
	Command string
	Options map[string]string
	// Replier is nil when the event cannot be answered.
	Replier Replier
}

// Option returns the named command option, or "".
func (e Event) Option(name string) string {
	if e.Options == nil {
		return ""
	}
	return e.Options[name]
}

// OptionSpec describes one command option for registration.
type OptionSpec struct {
	Name        string
	Description string
	Required    bool
	Choices     []string
}

// CommandSpec describes a command to register with the platform.
type CommandSpec struct {
	Name        string
	Description string
	Options     []OptionSpec
}

// MessageSender posts a message to a channel.
type MessageSender interface {
	SendMessage(ctx context.Context, channelID string, msg Response) error
}

// Connection is the chat-platform client as seen by the core.
type Connection interface {
	// Open performs the handshake; it returns once the session is ready.
	Open(ctx context.Context) error
	// Events is closed when the connection is closed or the stream fails.
	Events() <-chan Event
	// Err reports the stream failure that closed Events, if any.
	Err() error
	SyncCommands(ctx context.Context, guildID string, specs []CommandSpec) error
	LeaveGuild(ctx context.Context, guildID string) error
	SendMessage(ctx context.Context, channelID string, msg Response) error
	Latency() time.Duration
	Close() error
}
