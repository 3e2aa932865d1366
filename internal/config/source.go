package config

import (
	"slices"

	"cogbot/internal/ports/output"
)

var _ output.ConfigSource = (*Source)(nil)

// Source is an immutable ConfigSource snapshot of a Config.
type Source struct {
	token    string
	locale   string
	approved []string
	guilds   map[string]GuildConfig
}

// Source snapshots the settings consumed at runtime.
func (c *Config) Source() *Source {
	guilds := make(map[string]GuildConfig, len(c.Guilds.Guilds))
	for id, g := range c.Guilds.Guilds {
		guilds[id] = g
	}
	return &Source{
		token:    c.Token,
		locale:   c.Locale,
		approved: slices.Clone(c.ApprovedGuilds),
		guilds:   guilds,
	}
}

func (s *Source) Token() string  { return s.token }
func (s *Source) Locale() string { return s.locale }

func (s *Source) ApprovedGuilds() []string { return slices.Clone(s.approved) }

func (s *Source) IsApproved(guildID string) bool {
	return slices.Contains(s.approved, guildID)
}

func (s *Source) CommandsForGuild(guildID string) ([]string, bool) {
	g, ok := s.guilds[guildID]
	if !ok || g.Commands == nil {
		return nil, false
	}
	return slices.Clone(*g.Commands), true
}

func (s *Source) FeatureEnabled(guildID, feature string) bool {
	return s.guilds[guildID].Features[feature]
}

func (s *Source) Welcome(guildID string) (output.WelcomeSettings, bool) {
	g, ok := s.guilds[guildID]
	if !ok || g.Welcome == nil {
		return output.WelcomeSettings{}, false
	}
	w := output.WelcomeSettings{
		Enabled:   g.Welcome.Enabled,
		ChannelID: g.Welcome.ChannelID,
		Message:   g.Welcome.Message,
	}
	if e := g.Welcome.Embed; e != nil {
		w.Embed = &output.Embed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
			ImageURL:    e.ImageURL,
			Footer:      e.Footer,
		}
	}
	return w, true
}
