package api

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mojgrad-go/internal/apperror"
	"mojgrad-go/internal/auth"
	"mojgrad-go/internal/database"
	"mojgrad-go/internal/location"
	"mojgrad-go/internal/models"
	"mojgrad-go/internal/storage"
	"mojgrad-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type recordingJournal struct {
	mu          sync.Mutex
	adjustments []models.PointAdjustment
	points      map[string]int64
	err         error
}

func (j *recordingJournal) RecordAdjustments(_ context.Context, adjustments []models.PointAdjustment) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.adjustments = append(j.adjustments, adjustments...)
	return nil
}

func (j *recordingJournal) GetUserPoints(_ context.Context, userId string) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.points[userId], nil
}

func (j *recordingJournal) recorded() []models.PointAdjustment {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]models.PointAdjustment(nil), j.adjustments...)
}

type testEnv struct {
	service *Service
	db      *database.Service
	journal *recordingJournal
	tracker *location.Tracker
	uploads string
}

func setupService(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "api.db"),
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     time.Second,
		TxMaxAttempts:   10,
		TxRetryDelay:    time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	tokens, err := auth.NewTokenService("test-secret-at-least-16", time.Hour)
	require.NoError(t, err)

	uploads := t.TempDir()
	objects, err := storage.NewLocalStore(uploads)
	require.NoError(t, err)

	now := func() time.Time { return testNow }
	tracker := location.NewTracker(location.TrackerConfig{Persister: db, Now: now})
	journal := &recordingJournal{points: map[string]int64{}}

	service := NewService(ServiceConfig{
		Store:     db,
		Tracker:   tracker,
		Journal:   journal,
		Uploader:  storage.NewUploader(objects, "/files"),
		Tokens:    tokens,
		Passwords: auth.NewPasswordService(bcrypt.MinCost),
		Proximity: models.ProximityConfig{RadiusMeters: 500},
		Now:       now,
	})

	return &testEnv{service: service, db: db, journal: journal, tracker: tracker, uploads: uploads}
}

func (e *testEnv) createUser(t *testing.T, id, name string, admin bool) *models.User {
	t.Helper()
	user, err := e.db.CreateUser(context.Background(), store.CreateUserParams{
		Id:    id,
		Email: id + "@example.com",
		Name:  name,
		Admin: admin,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) report(t *testing.T, userId string, at models.GeoPoint) *models.Problem {
	t.Helper()
	problem, err := e.service.ReportProblem(context.Background(), userId, ReportRequest{
		Description: "Rupa na kolovozu",
		Category:    "Saobraćaj",
		Location:    &at,
	})
	require.NoError(t, err)
	return problem
}

func assertKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, auth.Registration{
		Email:    " Ana@Example.com ",
		Password: "tajna123",
		Name:     "Ana",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, registered.Token)
	assert.Equal(t, "ana@example.com", registered.User.Email)

	_, err = env.service.Register(ctx, auth.Registration{Email: "ana@example.com", Password: "tajna123", Name: "Ana"})
	assertKind(t, err, apperror.ErrConflict)

	loggedIn, err := env.service.Login(ctx, "ANA@example.com", "tajna123")
	require.NoError(t, err)
	assert.Equal(t, registered.User.Id, loggedIn.User.Id)

	_, err = env.service.Login(ctx, "ana@example.com", "pogresno")
	assertKind(t, err, apperror.ErrUnauthorized)

	_, err = env.service.Login(ctx, "nema@example.com", "tajna123")
	assertKind(t, err, apperror.ErrUnauthorized)
}

func TestRegister_Validation(t *testing.T) {
	env := setupService(t)

	_, err := env.service.Register(context.Background(), auth.Registration{Email: "ana@example.com", Password: "123", Name: "Ana"})
	assertKind(t, err, apperror.ErrValidation)
}

func TestLogin_RestoresLocation(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	registered, err := env.service.Register(ctx, auth.Registration{Email: "marko@example.com", Password: "tajna123", Name: "Marko"})
	require.NoError(t, err)

	saved := models.GeoPoint{Lat: 44.81, Lng: 20.46}
	require.NoError(t, env.db.UpdateUserLocation(ctx, registered.User.Id, saved, testNow))

	_, ok := env.tracker.Current(registered.User.Id)
	require.False(t, ok)

	_, err = env.service.Login(ctx, "marko@example.com", "tajna123")
	require.NoError(t, err)

	current, ok := env.tracker.Current(registered.User.Id)
	require.True(t, ok)
	assert.Equal(t, saved, current)
}

func TestUpdateLocation(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "u1", "Ana", false)

	update, err := env.service.UpdateLocation(context.Background(), "u1", models.GeoPoint{Lat: 44.8, Lng: 20.4})
	require.NoError(t, err)
	assert.True(t, update.Persisted)

	update, err = env.service.UpdateLocation(context.Background(), "u1", models.GeoPoint{Lat: 44.9, Lng: 20.4})
	require.NoError(t, err)
	assert.False(t, update.Persisted, "second write within the interval stays in memory")

	current, ok := env.tracker.Current("u1")
	require.True(t, ok)
	assert.Equal(t, 44.9, current.Lat)

	_, err = env.service.UpdateLocation(context.Background(), "u1", models.GeoPoint{Lat: 91, Lng: 0})
	assertKind(t, err, apperror.ErrValidation)

	_, err = env.service.UpdateLocation(context.Background(), "", models.GeoPoint{Lat: 44, Lng: 20})
	assertKind(t, err, apperror.ErrUnauthorized)
}

func TestReconcile(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	env.report(t, "author", models.GeoPoint{Lat: 44.8, Lng: 20.4})

	env.journal.points["author"] = ReportRewardPoints
	report, err := env.service.Reconcile(context.Background(), "author")
	require.NoError(t, err)
	assert.True(t, report.AuditOk)
	require.NotNil(t, report.JournalPoints)
	assert.True(t, report.Consistent())

	env.journal.points["author"] = 3
	report, err = env.service.Reconcile(context.Background(), "author")
	require.NoError(t, err)
	assert.False(t, report.Consistent())

	reports, err := env.service.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestGetPointHistory(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	env.report(t, "author", models.GeoPoint{Lat: 44.8, Lng: 20.4})

	history, err := env.service.GetPointHistory(context.Background(), "author", 0, -1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(ReportRewardPoints), history[0].Amount)
}
