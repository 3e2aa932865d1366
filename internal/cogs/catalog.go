// Package cogs holds the command modules shipped with the bot.
package cogs

import (
	"cogbot/internal/core/cog"
	"cogbot/internal/ports/output"
)

// Cog names, as used by DISABLED_COGS and /cogs reload.
const (
	UtilityCog  = "utility"
	SettingsCog = "settings"
	GuardCog    = "guard"
	WelcomeCog  = "welcome"
)

// Catalog returns the descriptors of every bundled cog.
func Catalog() (*cog.Catalog, error) {
	return cog.NewCatalog(
		UtilityDescriptor(),
		SettingsDescriptor(),
		GuardDescriptor(),
		WelcomeDescriptor(),
	)
}

func ephemeral(content string) cog.Result {
	return cog.Reply(output.Response{Content: content, Ephemeral: true})
}
