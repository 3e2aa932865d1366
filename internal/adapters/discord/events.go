package discord

import (
	"github.com/bwmarrin/discordgo"

	"cogbot/internal/ports/output"
	pkgdiscord "cogbot/pkg/discord"
)

func (c *Connection) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if ev, ok := commandEvent(s, i); ok {
		c.emit(ev)
	}
}

func (c *Connection) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if ev, ok := guildJoinEvent(g); ok {
		c.emit(ev)
	}
}

func (c *Connection) onMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if ev, ok := memberJoinEvent(m); ok {
		c.emit(ev)
	}
}

// commandEvent converts a slash command interaction. Other interaction
// types are ignored.
func commandEvent(s *discordgo.Session, i *discordgo.InteractionCreate) (output.Event, bool) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionApplicationCommand {
		return output.Event{}, false
	}
	data := i.ApplicationCommandData()
	ev := output.Event{
		Type:      output.EventCommand,
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Locale:    string(i.Locale),
		Command:   data.Name,
		Options:   pkgdiscord.FlattenOptions(data.Options),
		Replier:   newInteractionReplier(s, i.Interaction),
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		ev.UserID = i.Member.User.ID
		ev.Username = resolveDisplayName(i.Member)
		ev.Manager = i.Member.Permissions&discordgo.PermissionManageServer != 0
	case i.User != nil:
		ev.UserID = i.User.ID
		ev.Username = i.User.Username
	}
	return ev, true
}

func guildJoinEvent(g *discordgo.GuildCreate) (output.Event, bool) {
	if g == nil || g.Guild == nil || g.Unavailable {
		return output.Event{}, false
	}
	return output.Event{Type: output.EventGuildJoin, GuildID: g.ID}, true
}

func memberJoinEvent(m *discordgo.GuildMemberAdd) (output.Event, bool) {
	if m == nil || m.Member == nil || m.User == nil || m.User.Bot {
		return output.Event{}, false
	}
	return output.Event{
		Type:     output.EventMemberJoin,
		GuildID:  m.GuildID,
		UserID:   m.User.ID,
		Username: resolveDisplayName(m.Member),
	}, true
}
