// Package i18n renders user-facing messages from the embedded catalogues.
package i18n

import (
	"embed"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"cogbot/internal/ports/output"
)

//go:embed active.*.toml
var localeFS embed.FS

var catalogues = []string{"active.en.toml", "active.fr.toml"}

var _ output.Translator = (*Translator)(nil)

// Translator is a thin wrapper around go-i18n's Bundle/Localizer.
type Translator struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
	logger          *zap.Logger
}

// NewTranslator builds a Translator using the given default locale (e.g.
// "en"). An unparsable locale falls back to English.
func NewTranslator(defaultLocale string, logger *zap.Logger) *Translator {
	logger = logger.Named("i18n")
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		logger.Warn("unknown default locale, using English", zap.String("locale", defaultLocale))
		tag = language.English
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, file := range catalogues {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			logger.Error("catalogue not loaded", zap.String("file", file), zap.Error(err))
		}
	}

	return &Translator{
		bundle:          bundle,
		defaultLanguage: tag,
		logger:          logger,
	}
}

// Languages lists the loaded catalogues.
func (t *Translator) Languages() []language.Tag {
	return t.bundle.LanguageTags()
}

// T renders the message identified by key for the given locale.
// If the key/locale is not found, it falls back to the default locale,
// then finally to the key itself.
func (t *Translator) T(locale, key string, data map[string]any) string {
	if key == "" {
		return ""
	}

	languages := []string{}
	if locale != "" {
		languages = append(languages, locale)
	}
	languages = append(languages, t.defaultLanguage.String())

	localizer := i18n.NewLocalizer(t.bundle, languages...)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		t.logger.Debug("localize failed",
			zap.String("key", key),
			zap.Strings("locales", languages),
			zap.Error(err))
		if msg == "" {
			return key
		}
	}
	return msg
}
