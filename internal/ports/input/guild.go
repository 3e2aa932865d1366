package input

import (
	"context"

	"cogbot/internal/ports/output"
)

// WelcomeUseCase greets members joining a guild.
type WelcomeUseCase interface {
	// Greet returns false when welcome is not configured for the guild.
	Greet(ctx context.Context, ev output.Event) (bool, error)
}

// GuardUseCase keeps the bot out of guilds it is not approved for.
type GuardUseCase interface {
	// Enforce leaves guildID unless it is approved and reports whether it left.
	Enforce(ctx context.Context, guildID string) (bool, error)
}
