package api

import (
	"context"
	"testing"
	"time"

	"mojgrad-go/internal/apperror"
	"mojgrad-go/internal/geo"
	"mojgrad-go/internal/models"
	"mojgrad-go/internal/notify"
	"mojgrad-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportProblem_CreditsAuthor(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)

	problem := env.report(t, "author", models.GeoPoint{Lat: 44.8, Lng: 20.45})
	assert.Equal(t, models.StatusOpen, problem.Status)
	assert.Equal(t, "Ana", problem.AuthorName)
	assert.Equal(t, geo.Hash(problem.Location), problem.Geohash)

	user, err := env.service.Profile(context.Background(), "author")
	require.NoError(t, err)
	assert.Equal(t, int64(ReportRewardPoints), user.TotalPoints)
	assert.Equal(t, int64(ReportRewardPoints), user.PointsForMonth("2025-03"))

	recorded := env.journal.recorded()
	require.Len(t, recorded, 1)
	assert.Equal(t, "author", recorded[0].UserId)
	assert.Equal(t, int64(ReportRewardPoints), recorded[0].Delta)
}

func TestReportProblem_Validation(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	ctx := context.Background()

	tests := []struct {
		name  string
		req   ReportRequest
		field string
	}{
		{"missing description", ReportRequest{Category: "Ostalo"}, "description"},
		{"missing category", ReportRequest{Description: "Smeće"}, "category"},
		{"unknown category", ReportRequest{Description: "Smeće", Category: "Vreme"}, "category"},
		{"bad location", ReportRequest{Description: "Smeće", Category: "Ostalo", Location: &models.GeoPoint{Lat: 100}}, "location"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.ReportProblem(ctx, "author", tt.req)
			assertKind(t, err, apperror.ErrValidation)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}

	_, err := env.service.ReportProblem(ctx, "", ReportRequest{Description: "x", Category: "Ostalo"})
	assertKind(t, err, apperror.ErrUnauthorized)
}

func TestReportProblem_LocationFallback(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	ctx := context.Background()

	problem, err := env.service.ReportProblem(ctx, "author", ReportRequest{Description: "Smeće", Category: "čistoća"})
	require.NoError(t, err)
	assert.Equal(t, geo.DefaultLocation, problem.Location)
	assert.Equal(t, "Čistoća", problem.Category, "category is canonicalised")

	tracked := models.GeoPoint{Lat: 44.81, Lng: 20.47}
	_, err = env.service.UpdateLocation(ctx, "author", tracked)
	require.NoError(t, err)

	problem, err = env.service.ReportProblem(ctx, "author", ReportRequest{Description: "Smeće", Category: "Ostalo"})
	require.NoError(t, err)
	assert.Equal(t, tracked, problem.Location)
}

func TestReportProblem_UnknownAuthor(t *testing.T) {
	env := setupService(t)

	problem, err := env.service.ReportProblem(context.Background(), "ghost", ReportRequest{Description: "Smeće", Category: "Ostalo"})
	require.NoError(t, err)
	assert.Equal(t, unknownAuthor, problem.AuthorName)
}

func TestGetProblem(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	env.createUser(t, "voter", "Marko", false)
	problem := env.report(t, "author", models.GeoPoint{Lat: 44.8, Lng: 20.45})
	ctx := context.Background()

	view, err := env.service.GetProblem(ctx, "voter", problem.Id)
	require.NoError(t, err)
	assert.False(t, view.HasVoted)

	_, err = env.service.Vote(ctx, "voter", problem.Id)
	require.NoError(t, err)

	view, err = env.service.GetProblem(ctx, "voter", problem.Id)
	require.NoError(t, err)
	assert.True(t, view.HasVoted)
	assert.Equal(t, int64(1), view.Votes)

	_, err = env.service.GetProblem(ctx, "voter", "missing")
	assertKind(t, err, apperror.ErrNotFound)
}

func TestListProblems_Defaults(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	env.createUser(t, "admin", "Admin", true)
	open := env.report(t, "author", models.GeoPoint{Lat: 44.8, Lng: 20.45})
	resolved := env.report(t, "author", models.GeoPoint{Lat: 44.8, Lng: 20.46})
	ctx := context.Background()

	_, err := env.service.ToggleProblemStatus(ctx, "admin", resolved.Id)
	require.NoError(t, err)

	problems, err := env.service.ListProblems(ctx, store.ProblemFilter{})
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, open.Id, problems[0].Id)

	problems, err = env.service.ListProblems(ctx, store.ProblemFilter{Status: models.StatusResolved})
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, resolved.Id, problems[0].Id)

	_, err = env.service.ListProblems(ctx, store.ProblemFilter{Status: "deleted"})
	assertKind(t, err, apperror.ErrValidation)

	_, err = env.service.ListProblems(ctx, store.ProblemFilter{Sort: "random"})
	assertKind(t, err, apperror.ErrValidation)

	_, err = env.service.ListProblems(ctx, store.ProblemFilter{
		CreatedAfter:  testNow,
		CreatedBefore: testNow.Add(-time.Hour),
	})
	assertKind(t, err, apperror.ErrValidation)
}

func TestProblemsNear(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)

	center := models.GeoPoint{Lat: 44.8150, Lng: 20.4600}
	far := env.report(t, "author", models.GeoPoint{Lat: 44.8180, Lng: 20.4600})  // ~330m
	near := env.report(t, "author", models.GeoPoint{Lat: 44.8155, Lng: 20.4600}) // ~55m
	env.report(t, "author", models.GeoPoint{Lat: 44.8300, Lng: 20.4600})         // ~1.7km

	nearby, err := env.service.ProblemsNear(context.Background(), center, 0)
	require.NoError(t, err)
	require.Len(t, nearby, 2)
	assert.Equal(t, near.Id, nearby[0].Id)
	assert.Equal(t, far.Id, nearby[1].Id)
	assert.Less(t, nearby[0].DistanceMeters, nearby[1].DistanceMeters)
	assert.Equal(t, geo.FormatDistance(nearby[0].DistanceMeters), nearby[0].DistanceText)

	_, err = env.service.ProblemsNear(context.Background(), center, 50000)
	assertKind(t, err, apperror.ErrValidation)
}

func TestToggleProblemStatus(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	env.createUser(t, "admin", "Admin", true)
	problem := env.report(t, "author", models.GeoPoint{Lat: 44.8, Lng: 20.45})
	ctx := context.Background()

	_, err := env.service.ToggleProblemStatus(ctx, "author", problem.Id)
	assertKind(t, err, apperror.ErrForbidden)

	updated, err := env.service.ToggleProblemStatus(ctx, "admin", problem.Id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, updated.Status)

	updated, err = env.service.ToggleProblemStatus(ctx, "admin", problem.Id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, updated.Status)

	_, err = env.service.ToggleProblemStatus(ctx, "admin", "missing")
	assertKind(t, err, apperror.ErrNotFound)
}

func TestNewProximityChecker_NotifiesNearby(t *testing.T) {
	env := setupService(t)
	env.createUser(t, "author", "Ana", false)
	env.createUser(t, "walker", "Marko", false)
	problem := env.report(t, "author", models.GeoPoint{Lat: 44.8155, Lng: 20.46})
	ctx := context.Background()

	_, err := env.service.UpdateLocation(ctx, "walker", models.GeoPoint{Lat: 44.815, Lng: 20.46})
	require.NoError(t, err)

	var received []models.ProximityNotification
	checker := env.service.NewProximityChecker("walker", notify.NotifierFunc(func(_ context.Context, userId string, n models.ProximityNotification) error {
		assert.Equal(t, "walker", userId)
		received = append(received, n)
		return nil
	}))

	sent, err := checker.CheckOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, received, 1)
	assert.Equal(t, problem.Id, received[0].ProblemId)

	sent, err = checker.CheckOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent, "cooldown suppresses the repeat")
}
