package input

import (
	"context"

	"cogbot/internal/domain/entities"
)

// GuildSettingsUseCase manages per-guild key/value settings. Secret values
// are returned decrypted by Get and never listed.
type GuildSettingsUseCase interface {
	Get(ctx context.Context, guildID, key string) (entities.GuildSetting, error)
	Set(ctx context.Context, guildID, key, value, userID string) (entities.GuildSetting, error)
	Delete(ctx context.Context, guildID, key string) (bool, error)
	List(ctx context.Context, guildID string) ([]entities.GuildSetting, error)
}
