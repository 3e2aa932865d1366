package cogs

import (
	"context"
	"errors"
	"strings"

	"cogbot/internal/application"
	"cogbot/internal/core/app"
	"cogbot/internal/core/cog"
	"cogbot/internal/core/container"
	"cogbot/internal/domain"
	"cogbot/internal/ports/input"
	"cogbot/internal/ports/output"
)

// Settings exposes per-guild key/value settings through /settings.
type Settings struct {
	settings   input.GuildSettingsUseCase
	translator output.Translator
}

func NewSettings(settings input.GuildSettingsUseCase, translator output.Translator) *Settings {
	return &Settings{settings: settings, translator: translator}
}

func SettingsDescriptor() cog.Descriptor {
	return cog.Descriptor{
		Name:     SettingsCog,
		Requires: []string{application.IDGuildSettings, app.IDTranslator},
		New: func(args []any) (cog.Cog, error) {
			uc, err := container.Arg[input.GuildSettingsUseCase](args, 0)
			if err != nil {
				return nil, err
			}
			translator, err := container.Arg[output.Translator](args, 1)
			if err != nil {
				return nil, err
			}
			return NewSettings(uc, translator), nil
		},
	}
}

func (s *Settings) Handlers() []cog.CommandHandler {
	return []cog.CommandHandler{
		cog.Command(output.CommandSpec{
			Name:        "settings",
			Description: "Read or change server settings",
			Options: []output.OptionSpec{
				{Name: "action", Description: "What to do", Required: true, Choices: []string{"get", "set", "delete", "list"}},
				{Name: "key", Description: "Setting key, secret.* values are stored encrypted"},
				{Name: "value", Description: "New value for set"},
			},
		}, s.handle),
	}
}

func (s *Settings) handle(ctx context.Context, ev output.Event) (cog.Result, error) {
	if ev.GuildID == "" {
		return s.reply(ev, "error.invalid_input", map[string]any{"Reason": "settings only exist inside a server"}), nil
	}
	action := ev.Option("action")
	if action != "list" && ev.Option("key") == "" {
		return s.reply(ev, "error.invalid_input", map[string]any{"Reason": "key is required"}), nil
	}
	if (action == "set" || action == "delete") && !ev.Manager {
		return s.reply(ev, "error.forbidden", nil), nil
	}

	switch action {
	case "get":
		return s.get(ctx, ev)
	case "set":
		return s.set(ctx, ev)
	case "delete":
		return s.delete(ctx, ev)
	case "list":
		return s.list(ctx, ev)
	default:
		return s.reply(ev, "error.invalid_input", map[string]any{"Reason": "unknown action " + action}), nil
	}
}

func (s *Settings) get(ctx context.Context, ev output.Event) (cog.Result, error) {
	key := ev.Option("key")
	setting, err := s.settings.Get(ctx, ev.GuildID, key)
	if errors.Is(err, domain.ErrNotFound) {
		return s.reply(ev, "settings.not_found", map[string]any{"Key": key}), nil
	}
	if err != nil {
		return cog.Result{}, err
	}
	if setting.IsSecret() {
		return s.reply(ev, "settings.secret_value", map[string]any{"Key": key}), nil
	}
	return s.reply(ev, "settings.value", map[string]any{"Key": key, "Value": setting.Value}), nil
}

func (s *Settings) set(ctx context.Context, ev output.Event) (cog.Result, error) {
	key, value := ev.Option("key"), ev.Option("value")
	if value == "" {
		return s.reply(ev, "settings.missing_value", map[string]any{"Key": key}), nil
	}
	_, err := s.settings.Set(ctx, ev.GuildID, key, value, ev.UserID)
	if err != nil {
		var verr *application.ValidationError
		if errors.As(err, &verr) {
			return s.reply(ev, "error.invalid_input", map[string]any{"Reason": verr.Error()}), nil
		}
		return cog.Result{}, err
	}
	return s.reply(ev, "settings.saved", map[string]any{"Key": key}), nil
}

func (s *Settings) delete(ctx context.Context, ev output.Event) (cog.Result, error) {
	key := ev.Option("key")
	removed, err := s.settings.Delete(ctx, ev.GuildID, key)
	if err != nil {
		return cog.Result{}, err
	}
	if !removed {
		return s.reply(ev, "settings.not_found", map[string]any{"Key": key}), nil
	}
	return s.reply(ev, "settings.deleted", map[string]any{"Key": key}), nil
}

func (s *Settings) list(ctx context.Context, ev output.Event) (cog.Result, error) {
	settings, err := s.settings.List(ctx, ev.GuildID)
	if err != nil {
		return cog.Result{}, err
	}
	if len(settings) == 0 {
		return s.reply(ev, "settings.empty", nil), nil
	}
	keys := make([]string, 0, len(settings))
	for _, setting := range settings {
		if setting.Encrypted {
			keys = append(keys, setting.Key)
			continue
		}
		keys = append(keys, setting.Key+"="+setting.Value)
	}
	return s.reply(ev, "settings.list", map[string]any{"Keys": strings.Join(keys, ", ")}), nil
}

func (s *Settings) reply(ev output.Event, key string, data map[string]any) cog.Result {
	return ephemeral(s.translator.T(ev.Locale, key, data))
}
