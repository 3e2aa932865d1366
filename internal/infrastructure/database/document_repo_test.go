package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogbot/internal/domain"
	"cogbot/internal/domain/entities"
)

var documentColumns = []string{"id", "body", "created_at", "updated_at"}

func newMockRepo(t *testing.T, timeout time.Duration) (*DocumentRepository[entities.GuildSetting], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewDocumentRepository[entities.GuildSetting](sqlx.NewDb(db, "sqlmock"), "guild_settings", timeout), mock
}

func TestFindByID(t *testing.T) {
	repo, mock := newMockRepo(t, time.Second)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(findDocumentQuery)).
		WithArgs("guild_settings", "g1:prefix").
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow("g1:prefix", []byte(`{"guild_id":"g1","key":"prefix","value":"!"}`), now, now))

	got, err := repo.FindByID(context.Background(), "g1:prefix")
	require.NoError(t, err)
	assert.Equal(t, "g1", got.GuildID)
	assert.Equal(t, "prefix", got.Key)
	assert.Equal(t, "!", got.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t, time.Second)

	mock.ExpectQuery(regexp.QuoteMeta(findDocumentQuery)).
		WithArgs("guild_settings", "g1:missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "g1:missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	var persErr *domain.PersistenceError
	assert.False(t, errors.As(err, &persErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_DriverErrorIsWrapped(t *testing.T) {
	repo, mock := newMockRepo(t, time.Second)
	driverErr := errors.New("connection reset by peer")

	mock.ExpectQuery(regexp.QuoteMeta(findDocumentQuery)).WillReturnError(driverErr)

	_, err := repo.FindByID(context.Background(), "g1:x")
	var persErr *domain.PersistenceError
	require.ErrorAs(t, err, &persErr)
	assert.Equal(t, "find", persErr.Op)
	assert.Equal(t, "guild_settings", persErr.Collection)
	assert.False(t, persErr.Timeout())
	assert.ErrorIs(t, err, driverErr)
}

func TestFindByID_DecodeError(t *testing.T) {
	repo, mock := newMockRepo(t, time.Second)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(findDocumentQuery)).
		WillReturnRows(sqlmock.NewRows(documentColumns).AddRow("g1:x", []byte(`{not json`), now, now))

	_, err := repo.FindByID(context.Background(), "g1:x")
	var persErr *domain.PersistenceError
	require.ErrorAs(t, err, &persErr)
	assert.Equal(t, "decode", persErr.Op)
}

func TestTimeoutBecomesPersistenceTimeout(t *testing.T) {
	repo, mock := newMockRepo(t, 20*time.Millisecond)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(findDocumentQuery)).
		WillDelayFor(500 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows(documentColumns).AddRow("g1:x", []byte(`{}`), now, now))

	start := time.Now()
	_, err := repo.FindByID(context.Background(), "g1:x")
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	var persErr *domain.PersistenceError
	require.ErrorAs(t, err, &persErr)
	assert.True(t, persErr.Timeout())
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestUpsert(t *testing.T) {
	repo, mock := newMockRepo(t, time.Second)
	now := time.Now()
	setting := entities.GuildSetting{GuildID: "g1", Key: "prefix", Value: "?"}
	body := `{"guild_id":"g1","key":"prefix","value":"?","encrypted":false,"updated_by":"","updated_at":"0001-01-01T00:00:00Z"}`

	for range 2 {
		mock.ExpectQuery(regexp.QuoteMeta(upsertDocumentQuery)).
			WithArgs("guild_settings", "g1:prefix", body).
			WillReturnRows(sqlmock.NewRows(documentColumns).AddRow("g1:prefix", []byte(body), now, now))
	}

	first, err := repo.Upsert(context.Background(), setting)
	require.NoError(t, err)
	second, err := repo.Upsert(context.Background(), setting)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "?", second.Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	repo, mock := newMockRepo(t, time.Second)

	mock.ExpectExec(regexp.QuoteMeta(deleteDocumentQuery)).
		WithArgs("guild_settings", "g1:prefix").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteDocumentQuery)).
		WithArgs("guild_settings", "g1:prefix").
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.Delete(context.Background(), "g1:prefix")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(context.Background(), "g1:prefix")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_DriverError(t *testing.T) {
	repo, mock := newMockRepo(t, time.Second)
	mock.ExpectExec(regexp.QuoteMeta(deleteDocumentQuery)).WillReturnError(errors.New("read only"))

	_, err := repo.Delete(context.Background(), "g1:prefix")
	var persErr *domain.PersistenceError
	require.ErrorAs(t, err, &persErr)
	assert.Equal(t, "delete", persErr.Op)
}

func TestList(t *testing.T) {
	repo, mock := newMockRepo(t, time.Second)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(listDocumentsQuery)).
		WithArgs("guild_settings", "g1:").
		WillReturnRows(sqlmock.NewRows(documentColumns).
			AddRow("g1:a", []byte(`{"guild_id":"g1","key":"a","value":"1"}`), now, now).
			AddRow("g1:b", []byte(`{"guild_id":"g1","key":"b","value":"2"}`), now, now))

	got, err := repo.List(context.Background(), "g1:")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, "b", got[1].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}
