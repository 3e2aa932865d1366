package application

// Container identifiers of the services in this package.
const (
	IDSettingsRepository = "repository.guild_settings"
	IDCache              = "service.cache"
	IDSecurity           = "service.security"
	IDValidator          = "service.validator"
	IDGuildSettings      = "service.guild_settings"
	IDWelcome            = "service.welcome"
	IDGuard              = "service.guard"
)

// SettingsCollection is the document collection of guild settings.
const SettingsCollection = "guild_settings"
