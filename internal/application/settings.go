package application

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"cogbot/internal/domain/entities"
	"cogbot/internal/ports/input"
	"cogbot/internal/ports/output"
)

var _ input.GuildSettingsUseCase = (*GuildSettingsService)(nil)

const writeStripes = 32

// GuildSettingsService reads settings through the cache and writes through
// to the repository. Secret settings are stored encrypted; the cache holds
// the stored form.
//
// Writes to one ID are serialized by a striped lock and bump the ID version.
// A read that missed the cache only fills it when the version it saw before
// the repository call is still current.
type GuildSettingsService struct {
	repo      output.Repository[entities.GuildSetting]
	cache     *CacheService[string, entities.GuildSetting]
	security  *SecurityService
	validator *InputValidator
	now       func() time.Time

	writers [writeStripes]sync.Mutex

	mu       sync.Mutex
	versions map[string]uint64
}

func NewGuildSettingsService(
	repo output.Repository[entities.GuildSetting],
	cache *CacheService[string, entities.GuildSetting],
	security *SecurityService,
	validator *InputValidator,
) *GuildSettingsService {
	return &GuildSettingsService{
		repo:      repo,
		cache:     cache,
		security:  security,
		validator: validator,
		now:       time.Now,
		versions:  make(map[string]uint64),
	}
}

func (s *GuildSettingsService) writer(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.writers[h.Sum32()%writeStripes]
}

func (s *GuildSettingsService) version(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[id]
}

// fill caches a fetched row unless id was written since seen was read.
func (s *GuildSettingsService) fill(id string, seen uint64, stored entities.GuildSetting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[id] == seen {
		s.cache.Set(id, stored)
	}
}

// written records a write to id and replaces its cache entry. A nil stored
// drops the entry.
func (s *GuildSettingsService) written(id string, stored *entities.GuildSetting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[id]++
	if stored == nil {
		s.cache.Invalidate(id)
		return
	}
	s.cache.Set(id, *stored)
}

func (s *GuildSettingsService) Get(ctx context.Context, guildID, key string) (entities.GuildSetting, error) {
	id := entities.SettingID(guildID, key)
	stored, ok := s.cache.Get(id)
	if !ok {
		seen := s.version(id)
		var err error
		stored, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return entities.GuildSetting{}, err
		}
		s.fill(id, seen, stored)
	}
	return s.reveal(stored)
}

func (s *GuildSettingsService) Set(ctx context.Context, guildID, key, value, userID string) (entities.GuildSetting, error) {
	if err := s.validator.Validate(SettingInput{Key: key, Value: value}); err != nil {
		return entities.GuildSetting{}, err
	}
	setting := entities.GuildSetting{
		GuildID:   guildID,
		Key:       key,
		Value:     value,
		UpdatedBy: userID,
		UpdatedAt: s.now().UTC(),
	}
	if setting.IsSecret() {
		sealed, err := s.security.Encrypt(value, setting.DocumentID())
		if err != nil {
			return entities.GuildSetting{}, fmt.Errorf("encrypt %s: %w", key, err)
		}
		setting.Value = sealed
		setting.Encrypted = true
	}

	id := setting.DocumentID()
	w := s.writer(id)
	w.Lock()
	defer w.Unlock()

	stored, err := s.repo.Upsert(ctx, setting)
	if err != nil {
		s.written(id, nil)
		return entities.GuildSetting{}, err
	}
	s.written(id, &stored)
	return s.reveal(stored)
}

func (s *GuildSettingsService) Delete(ctx context.Context, guildID, key string) (bool, error) {
	id := entities.SettingID(guildID, key)
	w := s.writer(id)
	w.Lock()
	defer w.Unlock()

	removed, err := s.repo.Delete(ctx, id)
	s.written(id, nil)
	return removed, err
}

// List returns the settings of a guild with secret values blanked.
func (s *GuildSettingsService) List(ctx context.Context, guildID string) ([]entities.GuildSetting, error) {
	settings, err := s.repo.List(ctx, entities.SettingID(guildID, ""))
	if err != nil {
		return nil, err
	}
	for i := range settings {
		if settings[i].Encrypted {
			settings[i].Value = ""
		}
	}
	return settings, nil
}

func (s *GuildSettingsService) reveal(stored entities.GuildSetting) (entities.GuildSetting, error) {
	if !stored.Encrypted {
		return stored, nil
	}
	plain, err := s.security.Decrypt(stored.Value, stored.DocumentID())
	if err != nil {
		return entities.GuildSetting{}, fmt.Errorf("setting %s: %w", stored.Key, err)
	}
	stored.Value = plain
	return stored, nil
}
