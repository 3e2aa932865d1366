package entities

import (
	"strings"
	"time"
)

// SecretPrefix marks setting keys whose value is stored encrypted.
const SecretPrefix = "secret."

// GuildSetting is a per-guild key/value pair managed through /settings.
type GuildSetting struct {
	GuildID   string    `json:"guild_id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Encrypted bool      `json:"encrypted"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SettingID builds the stable document ID of a guild setting.
func SettingID(guildID, key string) string {
	return guildID + ":" + key
}

func (s GuildSetting) DocumentID() string {
	return SettingID(s.GuildID, s.Key)
}

// IsSecret reports whether the key requires encryption at rest.
func (s GuildSetting) IsSecret() bool {
	return strings.HasPrefix(s.Key, SecretPrefix) && len(s.Key) > len(SecretPrefix)
}
