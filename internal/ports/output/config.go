package output

// WelcomeSettings is the per-guild welcome message configuration.
type WelcomeSettings struct {
	Enabled   bool
	ChannelID string
	// Message may contain {user}, replaced by the member mention.
	Message string
	Embed   *Embed
}

// ConfigSource is an immutable snapshot of static settings.
type ConfigSource interface {
	Token() string
	Locale() string
	ApprovedGuilds() []string
	IsApproved(guildID string) bool
	// CommandsForGuild returns the enabled command names of a guild. When
	// restricted is false the guild has no list and every command is enabled.
	CommandsForGuild(guildID string) (names []string, restricted bool)
	FeatureEnabled(guildID, feature string) bool
	Welcome(guildID string) (WelcomeSettings, bool)
}
