package cogs

import (
	"context"

	"cogbot/internal/application"
	"cogbot/internal/core/cog"
	"cogbot/internal/core/container"
	"cogbot/internal/ports/input"
	"cogbot/internal/ports/output"
)

// Guard leaves guilds the bot is not approved for as soon as it joins.
type Guard struct {
	guard input.GuardUseCase
}

func GuardDescriptor() cog.Descriptor {
	return cog.Descriptor{
		Name:     GuardCog,
		Requires: []string{application.IDGuard},
		New: func(args []any) (cog.Cog, error) {
			uc, err := container.Arg[input.GuardUseCase](args, 0)
			if err != nil {
				return nil, err
			}
			return &Guard{guard: uc}, nil
		},
	}
}

func (g *Guard) Handlers() []cog.CommandHandler {
	return []cog.CommandHandler{
		cog.Listener("guard", output.EventGuildJoin, func(ctx context.Context, ev output.Event) (cog.Result, error) {
			_, err := g.guard.Enforce(ctx, ev.GuildID)
			return cog.Result{}, err
		}),
	}
}

// Welcome greets new members with the guild welcome message.
type Welcome struct {
	welcome input.WelcomeUseCase
}

func WelcomeDescriptor() cog.Descriptor {
	return cog.Descriptor{
		Name:     WelcomeCog,
		Requires: []string{application.IDWelcome},
		New: func(args []any) (cog.Cog, error) {
			uc, err := container.Arg[input.WelcomeUseCase](args, 0)
			if err != nil {
				return nil, err
			}
			return &Welcome{welcome: uc}, nil
		},
	}
}

func (w *Welcome) Handlers() []cog.CommandHandler {
	return []cog.CommandHandler{
		cog.Listener("welcome", output.EventMemberJoin, func(ctx context.Context, ev output.Event) (cog.Result, error) {
			_, err := w.welcome.Greet(ctx, ev)
			return cog.Result{}, err
		}),
	}
}
