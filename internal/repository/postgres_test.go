package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelplatform/internal/models"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestCredentialStoreCreate(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresCredentialStore(mock)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("alice", "$argon2id$hash", "analyst", "cybersecurity").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.Create(ctx, models.Credential{
		Username:     "alice",
		PasswordHash: []byte("$argon2id$hash"),
		Role:         models.UserRoleAnalyst,
		Domain:       models.DomainCybersecurity,
	}))

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (username) DO NOTHING")).
		WithArgs("alice", "$argon2id$hash", "user", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	err := store.Create(ctx, models.Credential{Username: "alice", PasswordHash: []byte("$argon2id$hash"), Role: models.UserRoleUser})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	err = store.Create(ctx, models.Credential{Username: "bob", Role: "root"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestCredentialStoreFind(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresCredentialStore(mock)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"username", "password_hash", "role", "domain", "created_at", "updated_at"}).
			AddRow("alice", "$argon2id$hash", "admin", "", now, now))
	cred, err := store.Find(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleAdmin, cred.Role)
	assert.Equal(t, []byte("$argon2id$hash"), cred.PasswordHash)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)
	_, err = store.Find(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	exists, err := store.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCredentialStoreUpdates(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresCredentialStore(mock)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET password_hash")).
		WithArgs("ghost", "h").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, store.UpdatePassword(ctx, "ghost", []byte("h")), ErrUserNotFound)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET role")).
		WithArgs("bob", "analyst", "it_operations").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.UpdateRole(ctx, "bob", models.UserRoleAnalyst, models.DomainITOperations))
	assert.ErrorIs(t, store.UpdateRole(ctx, "bob", "root", ""), ErrInvalidRole)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users")).
		WithArgs("bob").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, store.Delete(ctx, "bob"))
}

func TestSessionStore(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresSessionStore(mock)
	ctx := context.Background()
	now := time.Now()
	hash := []byte{1, 2, 3}

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_sessions WHERE expires_at <= $1")).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	n, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_sessions")).
		WithArgs(hash).
		WillReturnRows(pgxmock.NewRows([]string{"token_hash", "username", "ip_address", "user_agent", "created_at", "expires_at"}).
			AddRow(hash, "alice", "10.0.0.1", "curl", now, now.Add(time.Hour)))
	session, err := store.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Username)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_sessions WHERE token_hash = $1")).
		WithArgs(hash).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, store.Delete(ctx, hash), ErrSessionNotFound)
}

func TestLockoutStoreUpdateIsTransactional(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresLockoutStore(mock)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"failed_attempts", "locked_until"}).AddRow(2, int64(0)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE login_lockouts")).
		WithArgs("alice", 0, int64(1700000300)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.Update(ctx, "alice", func(l *models.Lockout) error {
		assert.Equal(t, 2, l.FailedAttempts)
		l.FailedAttempts = 0
		l.LockedUntil = time.Unix(1700000300, 0)
		return nil
	})
	require.NoError(t, err)
}

func TestLockoutStoreUpdateRollsBack(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresLockoutStore(mock)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"failed_attempts", "locked_until"}).AddRow(1, int64(0)))
	mock.ExpectRollback()

	err := store.Update(context.Background(), "alice", func(*models.Lockout) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestLockoutStoreSuccessWithoutRowWritesNothing(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresLockoutStore(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("alice").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectCommit()

	err := store.Update(context.Background(), "alice", func(l *models.Lockout) error {
		l.FailedAttempts = 0
		l.LockedUntil = time.Time{}
		return nil
	})
	require.NoError(t, err)
}

func TestLockoutStoreFirstFailureInsertsRow(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresLockoutStore(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("alice").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO login_lockouts")).
		WithArgs("alice", 1, int64(0)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := store.Update(context.Background(), "alice", func(l *models.Lockout) error {
		l.FailedAttempts++
		return nil
	})
	require.NoError(t, err)
}

func TestLockoutStoreFirstFailureRacesConcurrentInsert(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresLockoutStore(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("alice").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO login_lockouts")).
		WithArgs("alice", 1, int64(0)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"failed_attempts", "locked_until"}).AddRow(1, int64(0)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE login_lockouts")).
		WithArgs("alice", 2, int64(0)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := store.Update(context.Background(), "alice", func(l *models.Lockout) error {
		l.FailedAttempts++
		return nil
	})
	require.NoError(t, err)
}

func TestEpochSecondsRoundsUp(t *testing.T) {
	assert.Zero(t, epochSeconds(time.Time{}))
	assert.Equal(t, int64(1700000300), epochSeconds(time.Unix(1700000300, 0)))
	assert.Equal(t, int64(1700000301), epochSeconds(time.Unix(1700000300, 500)))
}

func TestLockoutStoreGetMissing(t *testing.T) {
	mock := newMock(t)
	store := NewPostgresLockoutStore(mock)

	mock.ExpectQuery(regexp.QuoteMeta("FROM login_lockouts WHERE username = $1")).
		WithArgs("alice").
		WillReturnError(pgx.ErrNoRows)
	lockout, err := store.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, models.Lockout{Username: "alice"}, lockout)
}

func TestIncidentRepository(t *testing.T) {
	mock := newMock(t)
	repo := NewIncidentRepository(mock)
	ctx := context.Background()
	now := time.Now()
	cols := []string{"id", "date", "incident_type", "severity", "status", "description", "reported_by", "created_at"}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO cyber_incidents")).
		WithArgs("2024-03-01", "Phishing", "High", "Open", "spoof", "alice").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	id, err := repo.Create(ctx, models.Incident{Date: "2024-03-01", IncidentType: "Phishing", Severity: "High", Status: "Open", Description: "spoof", ReportedBy: "alice"})
	require.NoError(t, err)
	assert.EqualValues(t, 11, id)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(severity) = LOWER($1) AND LOWER(status) = LOWER($2) ORDER BY id DESC LIMIT $3 OFFSET $4")).
		WithArgs("high", "open", 100, 0).
		WillReturnRows(pgxmock.NewRows(cols).AddRow(int64(11), "2024-03-01", "Phishing", "High", "Open", "spoof", "alice", now))
	list, err := repo.List(ctx, IncidentFilter{Severity: "high", Status: "open"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Phishing", list[0].IncidentType)

	mock.ExpectQuery(regexp.QuoteMeta("FROM cyber_incidents WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetByID(ctx, 99)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cyber_incidents")).
		WithArgs(int64(99)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	_, err = repo.Delete(ctx, 99)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(incident_type::text, ''), COUNT(*) AS count FROM cyber_incidents GROUP BY incident_type HAVING COUNT(*) > $1 ORDER BY count DESC")).
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"key", "count"}).AddRow("Phishing", int64(9)))
	counts, err := repo.TypesWithMoreThan(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []models.GroupCount{{Key: "Phishing", Count: 9}}, counts)
}

func TestTicketRepositoryDefaults(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO it_tickets")).
		WithArgs("High", "Open", "General", "No Subject", "", "2024-03-01", "", "ops").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	id, err := repo.Create(ctx, models.Ticket{Priority: "High", Status: "Open", CreatedDate: "2024-03-01", AssignedTo: "ops"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, id)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(priority) IN ($1, $2)")).
		WithArgs("high", "critical").
		WillReturnRows(pgxmock.NewRows([]string{"id", "priority", "status", "category", "subject", "description", "created_date", "resolved_date", "assigned_to", "created_at"}))
	tickets, err := repo.HighOrCritical(ctx)
	require.NoError(t, err)
	assert.Empty(t, tickets)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY created_date ORDER BY created_date ASC")).
		WillReturnRows(pgxmock.NewRows([]string{"key", "count"}).AddRow("2024-03-01", int64(2)).AddRow("2024-03-02", int64(1)))
	perDay, err := repo.CountByCreatedDate(ctx)
	require.NoError(t, err)
	assert.Len(t, perDay, 2)
}

func TestDatasetRepositoryStampsLastUpdated(t *testing.T) {
	mock := newMock(t)
	repo := NewDatasetRepository(mock)
	repo.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE datasets_metadata SET record_count = $2, last_updated = $3 WHERE id = $1")).
		WithArgs(int64(4), int64(5000), "2024-03-01").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	n, err := repo.UpdateRecordCount(ctx, 4, 5000)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE record_count >= $1 GROUP BY source")).
		WithArgs(10000).
		WillReturnRows(pgxmock.NewRows([]string{"key", "count"}).AddRow("Kaggle", int64(2)))
	large, err := repo.LargeBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.GroupCount{{Key: "Kaggle", Count: 2}}, large)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE column_count > $1")).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"dataset_name", "column_count"}).AddRow("wide", int64(40)))
	wide, err := repo.WideDatasets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.GroupCount{{Key: "wide", Count: 40}}, wide)
}

func TestAnalysisRepository(t *testing.T) {
	mock := newMock(t)
	repo := NewAnalysisRepository(mock)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analyses")).
		WithArgs("a1", "cybersecurity", int64(1), "alice", "pending", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Create(ctx, models.Analysis{
		ID: "a1", Domain: models.DomainCybersecurity, RecordID: 1, RequestedBy: "alice", Status: models.AnalysisStatusPending,
	}))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE analyses SET status")).
		WithArgs("a2", "done", "text", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	assert.ErrorIs(t, repo.Finish(ctx, "a2", models.AnalysisStatusDone, "text", ""), ErrAnalysisNotFound)
}
