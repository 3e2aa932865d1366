package cogs

import (
	"context"
	"slices"
	"strings"
	"time"

	"cogbot/internal/core/app"
	"cogbot/internal/core/cog"
	"cogbot/internal/core/container"
	"cogbot/internal/ports/output"
)

// LatencySource reports the gateway heartbeat latency.
type LatencySource interface {
	Latency() time.Duration
}

// CogManager is the part of the loader /cogs drives.
type CogManager interface {
	Loaded() []string
	Reload(ctx context.Context, name string) error
}

// Utility answers /ping and /cogs.
type Utility struct {
	latency    LatencySource
	cogs       CogManager
	translator output.Translator
}

func NewUtility(latency LatencySource, cogs CogManager, translator output.Translator) *Utility {
	return &Utility{latency: latency, cogs: cogs, translator: translator}
}

func UtilityDescriptor() cog.Descriptor {
	return cog.Descriptor{
		Name:     UtilityCog,
		Requires: []string{app.IDConnection, app.IDLoader, app.IDTranslator},
		New: func(args []any) (cog.Cog, error) {
			conn, err := container.Arg[output.Connection](args, 0)
			if err != nil {
				return nil, err
			}
			loader, err := container.Arg[*cog.Loader](args, 1)
			if err != nil {
				return nil, err
			}
			translator, err := container.Arg[output.Translator](args, 2)
			if err != nil {
				return nil, err
			}
			return NewUtility(conn, loader, translator), nil
		},
	}
}

func (u *Utility) Handlers() []cog.CommandHandler {
	return []cog.CommandHandler{
		cog.Command(output.CommandSpec{
			Name:        "ping",
			Description: "Check that the bot is responsive",
		}, u.ping),
		cog.Command(output.CommandSpec{
			Name:        "cogs",
			Description: "List loaded cogs or reload one",
			Options: []output.OptionSpec{
				{Name: "reload", Description: "Name of the cog to reload"},
			},
		}, u.listOrReload),
	}
}

func (u *Utility) ping(_ context.Context, ev output.Event) (cog.Result, error) {
	ms := u.latency.Latency().Milliseconds()
	return ephemeral(u.translator.T(ev.Locale, "ping.pong", map[string]any{"Latency": ms})), nil
}

func (u *Utility) listOrReload(ctx context.Context, ev output.Event) (cog.Result, error) {
	name := ev.Option("reload")
	if name == "" {
		return ephemeral(u.translator.T(ev.Locale, "cogs.list", map[string]any{
			"Cogs": strings.Join(u.cogs.Loaded(), ", "),
		})), nil
	}
	if !ev.Manager {
		return ephemeral(u.translator.T(ev.Locale, "error.forbidden", nil)), nil
	}
	data := map[string]any{"Cog": name}
	if !slices.Contains(u.cogs.Loaded(), name) {
		return ephemeral(u.translator.T(ev.Locale, "cogs.unknown", data)), nil
	}
	if err := u.cogs.Reload(ctx, name); err != nil {
		return cog.Result{}, err
	}
	return ephemeral(u.translator.T(ev.Locale, "cogs.reloaded", data)), nil
}
