// Package location keeps the last known position of each user and
// throttles how often that position is written to the user record.
package location

import (
	"context"
	"sync"
	"time"

	"mojgrad-go/internal/models"

	"go.uber.org/zap"
)

// DefaultMinPersistInterval is the minimum time between persisted writes per user
const DefaultMinPersistInterval = 30 * time.Second

// Persister stores a user's last known location.
type Persister interface {
	UpdateUserLocation(ctx context.Context, userId string, location models.GeoPoint, at time.Time) error
}

type TrackerConfig struct {
	Persister          Persister
	MinPersistInterval time.Duration
	Now                func() time.Time
}

type userLocation struct {
	current       models.GeoPoint
	known         bool
	updatedAt     time.Time
	lastPersisted time.Time
	subscribers   map[chan models.GeoPoint]struct{}
}

// Tracker holds the current location of every active user as an
// observable value.
type Tracker struct {
	persister          Persister
	minPersistInterval time.Duration
	now                func() time.Time

	mu    sync.Mutex
	users map[string]*userLocation
}

func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.MinPersistInterval <= 0 {
		cfg.MinPersistInterval = DefaultMinPersistInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tracker{
		persister:          cfg.Persister,
		minPersistInterval: cfg.MinPersistInterval,
		now:                cfg.Now,
		users:              make(map[string]*userLocation),
	}
}

func (t *Tracker) entry(userId string) *userLocation {
	u, ok := t.users[userId]
	if !ok {
		u = &userLocation{subscribers: make(map[chan models.GeoPoint]struct{})}
		t.users[userId] = u
	}
	return u
}

// Update sets the in-memory location unconditionally and persists it when
// at least MinPersistInterval passed since the last successful write.
// Persistence failures are logged and do not advance the throttle.
func (t *Tracker) Update(ctx context.Context, userId string, point models.GeoPoint) bool {
	now := t.now()

	t.mu.Lock()
	u := t.entry(userId)
	u.current = point
	u.known = true
	u.updatedAt = now
	t.notifyLocked(u, point)

	previous := u.lastPersisted
	shouldPersist := t.persister != nil && (previous.IsZero() || now.Sub(previous) >= t.minPersistInterval)
	if shouldPersist {
		u.lastPersisted = now
	}
	t.mu.Unlock()

	if !shouldPersist {
		zap.L().Debug("Location persistence throttled",
			zap.String("user_id", userId),
			zap.Duration("since_last_write", now.Sub(previous)))
		return false
	}

	if err := t.persister.UpdateUserLocation(ctx, userId, point, now); err != nil {
		zap.L().Error("Failed to persist user location",
			zap.String("user_id", userId),
			zap.Error(err))

		t.mu.Lock()
		if u.lastPersisted.Equal(now) {
			u.lastPersisted = previous
		}
		t.mu.Unlock()
		return false
	}

	zap.L().Debug("User location persisted",
		zap.String("user_id", userId),
		zap.Float64("lat", point.Lat),
		zap.Float64("lng", point.Lng))
	return true
}

// Restore seeds the location from a persisted record without writing it back.
// A location already known in memory wins.
func (t *Tracker) Restore(userId string, point models.GeoPoint, persistedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u := t.entry(userId)
	if u.known {
		return
	}
	u.current = point
	u.known = true
	u.updatedAt = persistedAt
	u.lastPersisted = persistedAt
	t.notifyLocked(u, point)
}

// Current returns the last known location of userId
func (t *Tracker) Current(userId string) (models.GeoPoint, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.users[userId]
	if !ok || !u.known {
		return models.GeoPoint{}, false
	}
	return u.current, true
}

// Subscribe streams location values for userId, starting with the current
// one if known. Only the newest value is buffered. The channel is closed
// when ctx is done.
func (t *Tracker) Subscribe(ctx context.Context, userId string) <-chan models.GeoPoint {
	ch := make(chan models.GeoPoint, 1)

	t.mu.Lock()
	u := t.entry(userId)
	u.subscribers[ch] = struct{}{}
	if u.known {
		ch <- u.current
	}
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(u.subscribers, ch)
		close(ch)
		t.mu.Unlock()
	}()

	return ch
}

func (t *Tracker) notifyLocked(u *userLocation, point models.GeoPoint) {
	for ch := range u.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- point
	}
}
