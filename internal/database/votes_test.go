package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mojgrad-go/internal/models"
	"mojgrad-go/internal/store"
)

var testNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func setupTestDb(t *testing.T) (*Service, func()) {
	t.Helper()
	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    8,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     time.Second,
		TxMaxAttempts:   20,
		TxRetryDelay:    time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	return service, service.Close
}

func createTestUser(t *testing.T, service *Service, id, name string, admin bool) *models.User {
	t.Helper()
	user, err := service.CreateUser(context.Background(), store.CreateUserParams{
		Id:    id,
		Email: id + "@example.com",
		Name:  name,
		Admin: admin,
	})
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", id, err)
	}
	return user
}

func createTestProblem(t *testing.T, service *Service, authorId string, location models.GeoPoint) *models.Problem {
	t.Helper()
	problem, _, err := service.CreateProblem(context.Background(), store.CreateProblemParams{
		Description:  "Rupa na kolovozu",
		Category:     "Saobraćaj",
		Location:     location,
		Geohash:      "srywc0000",
		UserId:       authorId,
		AuthorName:   "Author",
		RewardPoints: 10,
		CreatedAt:    testNow,
	})
	if err != nil {
		t.Fatalf("CreateProblem failed: %v", err)
	}
	return problem
}

func mustUser(t *testing.T, service *Service, id string) *models.User {
	t.Helper()
	user, err := service.GetUserById(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUserById(%s) failed: %v", id, err)
	}
	return user
}

func TestAddVote_Success(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "author", "Author", false)
	createTestUser(t, service, "voter", "Voter", false)
	problem := createTestProblem(t, service, "author", models.GeoPoint{Lat: 44.78, Lng: 20.45})

	result, err := service.AddVote(ctx, "voter", problem.Id, testNow)
	if err != nil {
		t.Fatalf("AddVote failed: %v", err)
	}

	if result.Vote.Id != "voter_"+problem.Id {
		t.Errorf("Expected vote id voter_%s, got %s", problem.Id, result.Vote.Id)
	}
	if result.Problem.Votes != 1 {
		t.Errorf("Expected 1 vote, got %d", result.Problem.Votes)
	}
	if len(result.Adjustments) != 2 {
		t.Fatalf("Expected 2 point adjustments, got %d", len(result.Adjustments))
	}

	voter := mustUser(t, service, "voter")
	if voter.TotalPoints != 1 || voter.PointsForMonth("2025-03") != 1 {
		t.Errorf("Expected voter 1/1 points, got %d/%d", voter.TotalPoints, voter.PointsForMonth("2025-03"))
	}
	author := mustUser(t, service, "author")
	if author.TotalPoints != 11 || author.PointsForMonth("2025-03") != 11 {
		t.Errorf("Expected author 11/11 points, got %d/%d", author.TotalPoints, author.PointsForMonth("2025-03"))
	}

	voted, err := service.HasVoted(ctx, "voter", problem.Id)
	if err != nil || !voted {
		t.Errorf("Expected HasVoted true, got %v (err %v)", voted, err)
	}
}

func TestAddVote_Preconditions(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "author", "Author", false)
	createTestUser(t, service, "voter", "Voter", false)
	problem := createTestProblem(t, service, "author", models.GeoPoint{Lat: 44.78, Lng: 20.45})

	if _, err := service.AddVote(ctx, "voter", problem.Id, testNow); err != nil {
		t.Fatalf("First AddVote failed: %v", err)
	}

	tests := []struct {
		name      string
		userId    string
		problemId string
		wantErr   error
	}{
		{"already voted", "voter", problem.Id, store.ErrAlreadyVoted},
		{"self vote", "author", problem.Id, store.ErrSelfVote},
		{"missing problem", "voter", "does-not-exist", store.ErrProblemNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.AddVote(ctx, tt.userId, tt.problemId, testNow)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	// Nothing changed after the rejected attempts
	got, _ := service.GetProblem(ctx, problem.Id)
	if got.Votes != 1 {
		t.Errorf("Expected 1 vote after rejected attempts, got %d", got.Votes)
	}
	if author := mustUser(t, service, "author"); author.TotalPoints != 11 {
		t.Errorf("Expected author 11 points, got %d", author.TotalPoints)
	}
}

func TestRemoveVote_RestoresCounts(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "author", "Author", false)
	createTestUser(t, service, "voter", "Voter", false)
	problem := createTestProblem(t, service, "author", models.GeoPoint{Lat: 44.78, Lng: 20.45})

	if _, err := service.AddVote(ctx, "voter", problem.Id, testNow); err != nil {
		t.Fatalf("AddVote failed: %v", err)
	}
	result, err := service.RemoveVote(ctx, "voter", problem.Id, testNow)
	if err != nil {
		t.Fatalf("RemoveVote failed: %v", err)
	}

	if result.Problem.Votes != 0 {
		t.Errorf("Expected 0 votes, got %d", result.Problem.Votes)
	}
	if voter := mustUser(t, service, "voter"); voter.TotalPoints != 0 || voter.PointsForMonth("2025-03") != 0 {
		t.Errorf("Expected voter back to 0 points, got %d", voter.TotalPoints)
	}
	if author := mustUser(t, service, "author"); author.TotalPoints != 10 {
		t.Errorf("Expected author back to 10 points, got %d", author.TotalPoints)
	}
	if voted, _ := service.HasVoted(ctx, "voter", problem.Id); voted {
		t.Error("Expected vote to be deleted")
	}
}

func TestRemoveVote_Missing(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "author", "Author", false)
	problem := createTestProblem(t, service, "author", models.GeoPoint{Lat: 44.78, Lng: 20.45})

	_, err := service.RemoveVote(ctx, "voter", problem.Id, testNow)
	if !errors.Is(err, store.ErrVoteNotFound) {
		t.Errorf("Expected ErrVoteNotFound, got %v", err)
	}
}

func TestRemoveVote_ClampsAtZero(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "author", "Author", false)
	createTestUser(t, service, "voter", "Voter", false)
	problem := createTestProblem(t, service, "author", models.GeoPoint{Lat: 44.78, Lng: 20.45})

	if _, err := service.AddVote(ctx, "voter", problem.Id, testNow); err != nil {
		t.Fatalf("AddVote failed: %v", err)
	}

	// Simulate drifted counters
	if _, err := service.db.Exec("UPDATE problems SET votes = 0"); err != nil {
		t.Fatalf("Failed to reset votes: %v", err)
	}
	if _, err := service.db.Exec("UPDATE users SET total_points = 0"); err != nil {
		t.Fatalf("Failed to reset points: %v", err)
	}
	if _, err := service.db.Exec("UPDATE monthly_points SET points = 0"); err != nil {
		t.Fatalf("Failed to reset monthly points: %v", err)
	}

	result, err := service.RemoveVote(ctx, "voter", problem.Id, testNow)
	if err != nil {
		t.Fatalf("RemoveVote failed: %v", err)
	}
	if result.Problem.Votes != 0 {
		t.Errorf("Expected votes clamped at 0, got %d", result.Problem.Votes)
	}
	for _, id := range []string{"voter", "author"} {
		user := mustUser(t, service, id)
		if user.TotalPoints != 0 || user.PointsForMonth("2025-03") != 0 {
			t.Errorf("Expected %s clamped at 0, got %d/%d", id, user.TotalPoints, user.PointsForMonth("2025-03"))
		}
	}
	for _, adj := range result.Adjustments {
		if adj.Delta != 0 {
			t.Errorf("Expected no applied delta for %s, got %d", adj.UserId, adj.Delta)
		}
	}
}

func TestAddVote_MissingUsersSkipped(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "author", "Author", false)
	problem := createTestProblem(t, service, "author", models.GeoPoint{Lat: 44.78, Lng: 20.45})

	// voter has no user record
	result, err := service.AddVote(ctx, "ghost", problem.Id, testNow)
	if err != nil {
		t.Fatalf("AddVote failed: %v", err)
	}
	if len(result.Adjustments) != 1 || result.Adjustments[0].UserId != "author" {
		t.Errorf("Expected only the author to be credited, got %+v", result.Adjustments)
	}
}

func TestAddVote_ConcurrentVoters(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "author", "Author", false)
	problem := createTestProblem(t, service, "author", models.GeoPoint{Lat: 44.78, Lng: 20.45})

	const voters = 10
	for i := 0; i < voters; i++ {
		createTestUser(t, service, fmt.Sprintf("voter%d", i), "Voter", false)
	}

	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := service.AddVote(ctx, fmt.Sprintf("voter%d", i), problem.Id, testNow); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent AddVote failed: %v", err)
	}

	got, _ := service.GetProblem(ctx, problem.Id)
	if got.Votes != voters {
		t.Errorf("Expected %d votes, got %d", voters, got.Votes)
	}
	if author := mustUser(t, service, "author"); author.TotalPoints != 10+voters {
		t.Errorf("Expected author %d points, got %d", 10+voters, author.TotalPoints)
	}
}

func TestRunTransaction_RejectsReadAfterWrite(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	createTestUser(t, service, "u1", "User", false)

	calls := 0
	err := service.runTransaction(ctx, "test", func(ctx context.Context, tx *docTx) error {
		calls++
		if _, err := tx.exec(ctx, "UPDATE users SET name = 'X' WHERE id = 'u1'"); err != nil {
			return err
		}
		_, err := tx.queryRow(ctx, queryGetUserPointsState, "u1")
		return err
	})
	if !errors.Is(err, store.ErrReadAfterWrite) {
		t.Fatalf("Expected ErrReadAfterWrite, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected no retry, got %d calls", calls)
	}
	if user := mustUser(t, service, "u1"); user.Name != "User" {
		t.Errorf("Expected write to be rolled back, got name %q", user.Name)
	}
}

func TestRunTransaction_RetriesConflicts(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	calls := 0
	err := service.runTransaction(context.Background(), "test", func(ctx context.Context, tx *docTx) error {
		calls++
		if calls < 3 {
			return store.ErrConcurrentModification
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}

	calls = 0
	err = service.runTransaction(context.Background(), "test", func(ctx context.Context, tx *docTx) error {
		calls++
		return store.ErrAlreadyVoted
	})
	if !errors.Is(err, store.ErrAlreadyVoted) || calls != 1 {
		t.Errorf("Expected a single attempt with ErrAlreadyVoted, got %d attempts and %v", calls, err)
	}
}
