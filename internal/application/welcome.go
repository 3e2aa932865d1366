package application

import (
	"context"
	"strings"

	"cogbot/internal/ports/input"
	"cogbot/internal/ports/output"
)

var _ input.WelcomeUseCase = (*WelcomeService)(nil)

const userPlaceholder = "{user}"

// FeatureWelcome is the guild feature flag that turns welcome messages on.
const FeatureWelcome = "welcome"

type WelcomeService struct {
	config     output.ConfigSource
	sender     output.MessageSender
	translator output.Translator
}

func NewWelcomeService(config output.ConfigSource, sender output.MessageSender, translator output.Translator) *WelcomeService {
	return &WelcomeService{config: config, sender: sender, translator: translator}
}

// Greet posts the guild welcome message for the joining member. The guild
// needs the welcome feature and an enabled welcome section.
func (s *WelcomeService) Greet(ctx context.Context, ev output.Event) (bool, error) {
	if !s.config.FeatureEnabled(ev.GuildID, FeatureWelcome) {
		return false, nil
	}
	settings, ok := s.config.Welcome(ev.GuildID)
	if !ok || !settings.Enabled || settings.ChannelID == "" {
		return false, nil
	}
	mention := "<@" + ev.UserID + ">"

	content := strings.ReplaceAll(settings.Message, userPlaceholder, mention)
	if settings.Message == "" {
		locale := ev.Locale
		if locale == "" {
			locale = s.config.Locale()
		}
		content = s.translator.T(locale, "welcome.default", map[string]any{"User": mention})
	}
	msg := output.Response{Content: content}
	if settings.Embed != nil {
		embed := *settings.Embed
		embed.Title = strings.ReplaceAll(embed.Title, userPlaceholder, ev.Username)
		embed.Description = strings.ReplaceAll(embed.Description, userPlaceholder, mention)
		msg.Embed = &embed
	}

	if err := s.sender.SendMessage(ctx, settings.ChannelID, msg); err != nil {
		return false, err
	}
	return true, nil
}
