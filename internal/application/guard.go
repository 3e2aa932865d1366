package application

import (
	"context"

	"go.uber.org/zap"

	"cogbot/internal/ports/input"
	"cogbot/internal/ports/output"
)

var _ input.GuardUseCase = (*GuardService)(nil)

// GuildLeaver leaves a guild.
type GuildLeaver interface {
	LeaveGuild(ctx context.Context, guildID string) error
}

type GuardService struct {
	config output.ConfigSource
	leaver GuildLeaver
	logger *zap.Logger
}

func NewGuardService(config output.ConfigSource, leaver GuildLeaver, logger *zap.Logger) *GuardService {
	return &GuardService{config: config, leaver: leaver, logger: logger.Named("guard")}
}

func (s *GuardService) Enforce(ctx context.Context, guildID string) (bool, error) {
	if guildID == "" || s.config.IsApproved(guildID) {
		return false, nil
	}
	if err := s.leaver.LeaveGuild(ctx, guildID); err != nil {
		return false, err
	}
	s.logger.Warn("left unapproved guild", zap.String("guild_id", guildID))
	return true, nil
}
