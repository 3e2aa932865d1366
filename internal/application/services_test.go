package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cogbot/internal/domain"
	"cogbot/internal/domain/entities"
	"cogbot/internal/infrastructure/memory"
	"cogbot/internal/ports/output"
)

type fakeConfig struct {
	approved []string
	welcome  map[string]output.WelcomeSettings
	features map[string][]string
}

func (f fakeConfig) Token() string            { return "t" }
func (f fakeConfig) Locale() string           { return "en" }
func (f fakeConfig) ApprovedGuilds() []string { return f.approved }

func (f fakeConfig) IsApproved(id string) bool {
	for _, g := range f.approved {
		if g == id {
			return true
		}
	}
	return false
}

func (f fakeConfig) CommandsForGuild(string) ([]string, bool) { return nil, false }

func (f fakeConfig) FeatureEnabled(guildID, feature string) bool {
	for _, name := range f.features[guildID] {
		if name == feature {
			return true
		}
	}
	return false
}

func (f fakeConfig) Welcome(id string) (output.WelcomeSettings, bool) {
	w, ok := f.welcome[id]
	return w, ok
}

type sentMessage struct {
	channel string
	msg     output.Response
}

type fakePlatform struct {
	mu   sync.Mutex
	sent []sentMessage
	left []string
	err  error
}

func (p *fakePlatform) SendMessage(_ context.Context, channelID string, msg output.Response) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, sentMessage{channelID, msg})
	return nil
}

func (p *fakePlatform) LeaveGuild(_ context.Context, guildID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.left = append(p.left, guildID)
	return nil
}

type echoTranslator struct{}

func (echoTranslator) T(locale, key string, data map[string]any) string {
	if user, ok := data["User"]; ok {
		return locale + ":" + key + ":" + user.(string)
	}
	return locale + ":" + key
}

// countingRepo counts repository reads to observe the cache.
type countingRepo struct {
	*memory.Repository[entities.GuildSetting]
	mu    sync.Mutex
	finds int
	fail  error
}

func (r *countingRepo) FindByID(ctx context.Context, id string) (entities.GuildSetting, error) {
	r.mu.Lock()
	r.finds++
	fail := r.fail
	r.mu.Unlock()
	if fail != nil {
		return entities.GuildSetting{}, fail
	}
	return r.Repository.FindByID(ctx, id)
}

func (r *countingRepo) Upsert(ctx context.Context, s entities.GuildSetting) (entities.GuildSetting, error) {
	if r.fail != nil {
		return entities.GuildSetting{}, r.fail
	}
	return r.Repository.Upsert(ctx, s)
}

// gatedRepo parks FindByID after the read until release is closed.
type gatedRepo struct {
	*memory.Repository[entities.GuildSetting]
	read    chan struct{}
	release chan struct{}
}

func newGatedRepo() *gatedRepo {
	return &gatedRepo{Repository: memory.NewRepository[entities.GuildSetting](SettingsCollection)}
}

func (r *gatedRepo) gate() {
	r.read = make(chan struct{})
	r.release = make(chan struct{})
}

func (r *gatedRepo) FindByID(ctx context.Context, id string) (entities.GuildSetting, error) {
	setting, err := r.Repository.FindByID(ctx, id)
	if r.read != nil {
		read, release := r.read, r.release
		r.read, r.release = nil, nil
		close(read)
		<-release
	}
	return setting, err
}

func newGatedSettingsService(t *testing.T) (*GuildSettingsService, *gatedRepo) {
	t.Helper()
	security, err := NewSecurityService("s3cret")
	require.NoError(t, err)
	repo := newGatedRepo()
	svc := NewGuildSettingsService(repo, NewCacheService[string, entities.GuildSetting](16, time.Minute), security, NewInputValidator())
	return svc, repo
}

func newSettingsService(t *testing.T) (*GuildSettingsService, *countingRepo) {
	t.Helper()
	security, err := NewSecurityService("s3cret")
	require.NoError(t, err)
	repo := &countingRepo{Repository: memory.NewRepository[entities.GuildSetting](SettingsCollection)}
	svc := NewGuildSettingsService(repo, NewCacheService[string, entities.GuildSetting](16, time.Minute), security, NewInputValidator())
	svc.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestGuildSettingsService_SlowReadDoesNotHideWrite(t *testing.T) {
	svc, repo := newGatedSettingsService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, "g1", "prefix", "old", "u1")
	require.NoError(t, err)
	svc.cache.Purge()

	repo.gate()
	read, release := repo.read, repo.release
	done := make(chan entities.GuildSetting, 1)
	go func() {
		got, err := svc.Get(ctx, "g1", "prefix")
		assert.NoError(t, err)
		done <- got
	}()
	<-read

	_, err = svc.Set(ctx, "g1", "prefix", "new", "u1")
	require.NoError(t, err)
	close(release)
	assert.Equal(t, "old", (<-done).Value)

	got, err := svc.Get(ctx, "g1", "prefix")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Value)
}

func TestGuildSettingsService_SlowReadDoesNotResurrectDelete(t *testing.T) {
	svc, repo := newGatedSettingsService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, "g1", "prefix", "!", "u1")
	require.NoError(t, err)
	svc.cache.Purge()

	repo.gate()
	read, release := repo.read, repo.release
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Get(ctx, "g1", "prefix")
		assert.NoError(t, err)
	}()
	<-read

	removed, err := svc.Delete(ctx, "g1", "prefix")
	require.NoError(t, err)
	assert.True(t, removed)
	close(release)
	<-done

	_, err = svc.Get(ctx, "g1", "prefix")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCacheService(t *testing.T) {
	c := NewCacheService[string, int](2, time.Minute)

	_, ok := c.Get("a")
	assert.False(t, ok)
	c.Set("a", 1)
	c.Set("b", 2)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("c", 3) // evicts b, the least recently used
	_, ok = c.Get("b")
	assert.False(t, ok)

	c.Invalidate("a")
	_, ok = c.Get("a")
	assert.False(t, ok)

	assert.Equal(t, CacheStats{Hits: 1, Misses: 3, Size: 1}, c.Stats())
	c.Purge()
	assert.Equal(t, 0, c.Stats().Size)
}

func TestCacheService_Expiry(t *testing.T) {
	c := NewCacheService[string, int](8, 20*time.Millisecond)
	c.Set("a", 1)
	assert.Eventually(t, func() bool {
		_, ok := c.Get("a")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestCacheService_ConcurrentAccess(t *testing.T) {
	c := NewCacheService[int, int](64, time.Minute)
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(i%10, i)
			c.Get(i % 10)
		}(i)
	}
	wg.Wait()
	stats := c.Stats()
	assert.Equal(t, uint64(100), stats.Hits+stats.Misses)
}

func TestSecurityService(t *testing.T) {
	s, err := NewSecurityService("key material")
	require.NoError(t, err)

	token, err := s.Encrypt("hunter2", "g1:secret.api")
	require.NoError(t, err)
	assert.NotContains(t, token, "hunter2")

	other, err := s.Encrypt("hunter2", "g1:secret.api")
	require.NoError(t, err)
	assert.NotEqual(t, token, other, "nonces must differ")

	plain, err := s.Decrypt(token, "g1:secret.api")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)

	_, err = s.Decrypt(token, "g2:secret.api")
	assert.ErrorIs(t, err, ErrDecrypt)
	_, err = s.Decrypt("not base64!", "g1:secret.api")
	assert.ErrorIs(t, err, ErrDecrypt)
	_, err = s.Decrypt("", "g1:secret.api")
	assert.ErrorIs(t, err, ErrDecrypt)

	wrongKey, err := NewSecurityService("other key")
	require.NoError(t, err)
	_, err = wrongKey.Decrypt(token, "g1:secret.api")
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = NewSecurityService("")
	assert.Error(t, err)
}

func TestInputValidator(t *testing.T) {
	v := NewInputValidator()
	tests := []struct {
		name  string
		in    SettingInput
		field string
	}{
		{"valid", SettingInput{Key: "welcome.channel", Value: "123"}, ""},
		{"empty key", SettingInput{Key: "", Value: "x"}, "key"},
		{"uppercase key", SettingInput{Key: "Prefix", Value: "x"}, "key"},
		{"long key", SettingInput{Key: strings.Repeat("k", 65)}, "key"},
		{"control character", SettingInput{Key: "prefix", Value: "a\x00b"}, "value"},
		{"mass mention", SettingInput{Key: "motd", Value: "hi @everyone"}, "value"},
		{"long value", SettingInput{Key: "motd", Value: strings.Repeat("v", 513)}, "value"},
		{"multiline value", SettingInput{Key: "motd", Value: "line one\nline two"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestGuildSettings_SetAndGetUsesCache(t *testing.T) {
	svc, repo := newSettingsService(t)
	ctx := context.Background()

	saved, err := svc.Set(ctx, "g1", "prefix", "!", "u1")
	require.NoError(t, err)
	assert.Equal(t, "!", saved.Value)
	assert.Equal(t, "u1", saved.UpdatedBy)

	for range 3 {
		got, err := svc.Get(ctx, "g1", "prefix")
		require.NoError(t, err)
		assert.Equal(t, "!", got.Value)
	}
	assert.Equal(t, 0, repo.finds)

	svc.cache.Purge()
	_, err = svc.Get(ctx, "g1", "prefix")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "g1", "prefix")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.finds)
}

func TestGuildSettings_SecretsAreEncryptedAtRest(t *testing.T) {
	svc, repo := newSettingsService(t)
	ctx := context.Background()

	saved, err := svc.Set(ctx, "g1", "secret.api_key", "hunter2", "u1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", saved.Value)
	assert.True(t, saved.Encrypted)

	raw, err := repo.Repository.FindByID(ctx, "g1:secret.api_key")
	require.NoError(t, err)
	assert.True(t, raw.Encrypted)
	assert.NotEqual(t, "hunter2", raw.Value)

	svc.cache.Purge()
	got, err := svc.Get(ctx, "g1", "secret.api_key")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Value)

	listed, err := svc.List(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].Value)
}

func TestGuildSettings_NotFoundAndDelete(t *testing.T) {
	svc, _ := newSettingsService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "g1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Set(ctx, "g1", "prefix", "!", "u1")
	require.NoError(t, err)
	removed, err := svc.Delete(ctx, "g1", "prefix")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = svc.Get(ctx, "g1", "prefix")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	removed, err = svc.Delete(ctx, "g1", "prefix")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestGuildSettings_InvalidInputNeverReachesRepository(t *testing.T) {
	svc, repo := newSettingsService(t)
	_, err := svc.Set(context.Background(), "g1", "Bad Key", "x", "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, repo.Len())
}

func TestGuildSettings_PersistenceErrorsPropagate(t *testing.T) {
	svc, repo := newSettingsService(t)
	repo.fail = &domain.PersistenceError{Op: "find", Collection: SettingsCollection, Err: domain.ErrTimeout}

	_, err := svc.Get(context.Background(), "g1", "prefix")
	var persErr *domain.PersistenceError
	require.ErrorAs(t, err, &persErr)
	assert.True(t, persErr.Timeout())

	_, err = svc.Set(context.Background(), "g1", "prefix", "!", "u1")
	assert.ErrorAs(t, err, &persErr)
	_, ok := svc.cache.Get("g1:prefix")
	assert.False(t, ok)
}

func TestWelcomeService(t *testing.T) {
	cfg := fakeConfig{welcome: map[string]output.WelcomeSettings{
		"g1": {Enabled: true, ChannelID: "c1", Message: "Hello {user}!", Embed: &output.Embed{Title: "Welcome {user}", Description: "Glad to have {user}"}},
		"g2": {Enabled: true, ChannelID: "c2"},
		"g3": {Enabled: false, ChannelID: "c3", Message: "nope"},
		"g5": {Enabled: true, ChannelID: "c5", Message: "feature off"},
	}, features: map[string][]string{
		"g1": {FeatureWelcome},
		"g2": {FeatureWelcome},
		"g3": {FeatureWelcome},
	}}
	platform := &fakePlatform{}
	svc := NewWelcomeService(cfg, platform, echoTranslator{})
	ctx := context.Background()

	sent, err := svc.Greet(ctx, output.Event{Type: output.EventMemberJoin, GuildID: "g1", UserID: "42", Username: "ada"})
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = svc.Greet(ctx, output.Event{Type: output.EventMemberJoin, GuildID: "g2", UserID: "7", Locale: "fr"})
	require.NoError(t, err)
	assert.True(t, sent)

	for _, guild := range []string{"g3", "g4", "g5"} {
		sent, err = svc.Greet(ctx, output.Event{Type: output.EventMemberJoin, GuildID: guild, UserID: "1"})
		require.NoError(t, err)
		assert.False(t, sent)
	}

	require.Len(t, platform.sent, 2)
	first := platform.sent[0]
	assert.Equal(t, "c1", first.channel)
	assert.Equal(t, "Hello <@42>!", first.msg.Content)
	require.NotNil(t, first.msg.Embed)
	assert.Equal(t, "Welcome ada", first.msg.Embed.Title)
	assert.Equal(t, "Glad to have <@42>", first.msg.Embed.Description)
	assert.Equal(t, "Welcome {user}", cfg.welcome["g1"].Embed.Title, "config must not be mutated")

	assert.Equal(t, "fr:welcome.default:<@7>", platform.sent[1].msg.Content)
}

func TestWelcomeService_SendFailure(t *testing.T) {
	cfg := fakeConfig{
		welcome:  map[string]output.WelcomeSettings{"g1": {Enabled: true, ChannelID: "c1", Message: "hi"}},
		features: map[string][]string{"g1": {FeatureWelcome}},
	}
	svc := NewWelcomeService(cfg, &fakePlatform{err: errors.New("missing access")}, echoTranslator{})

	sent, err := svc.Greet(context.Background(), output.Event{GuildID: "g1", UserID: "1"})
	assert.Error(t, err)
	assert.False(t, sent)
}

func TestGuardService(t *testing.T) {
	platform := &fakePlatform{}
	svc := NewGuardService(fakeConfig{approved: []string{"g1"}}, platform, zap.NewNop())
	ctx := context.Background()

	left, err := svc.Enforce(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, left)

	left, err = svc.Enforce(ctx, "g666")
	require.NoError(t, err)
	assert.True(t, left)

	left, err = svc.Enforce(ctx, "")
	require.NoError(t, err)
	assert.False(t, left)

	assert.Equal(t, []string{"g666"}, platform.left)

	platform.err = errors.New("unknown guild")
	_, err = svc.Enforce(ctx, "g7")
	assert.Error(t, err)
}
