// Package notify delivers proximity notifications to users.
package notify

import (
	"context"
	"errors"

	"mojgrad-go/internal/models"

	"go.uber.org/zap"
)

// Channel ids
const (
	ServiceChannelId   = "ProximityServiceChannel"
	ProximityChannelId = "ProximityNotificationChannel"
)

// ErrNoRecipient is returned when a user has no live delivery target
var ErrNoRecipient = errors.New("no connected recipient")

// DefaultChannels are the channels a client registers on connect
var DefaultChannels = []models.NotificationChannel{
	{
		Id:          ServiceChannelId,
		Name:        "Proximity Service",
		Description: "Praćenje lokacije za obaveštenja o problemima u blizini",
		Importance:  models.PriorityLow,
	},
	{
		Id:          ProximityChannelId,
		Name:        "Problemi u blizini",
		Description: "Obaveštenja kada ste blizu prijavljenog problema",
		Importance:  models.PriorityHigh,
	},
}

// Notifier delivers a notification to a single user.
type Notifier interface {
	Notify(ctx context.Context, userId string, n models.ProximityNotification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userId string, n models.ProximityNotification) error {
	zap.L().Info("Proximity notification",
		zap.String("user_id", userId),
		zap.String("problem_id", n.ProblemId),
		zap.String("title", n.Title),
		zap.String("body", n.Body),
		zap.String("deep_link", n.DeepLink))
	return nil
}

// Multi delivers to every notifier and succeeds if at least one did.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, userId string, n models.ProximityNotification) error {
	var errs []error
	delivered := false
	for _, notifier := range m {
		if err := notifier.Notify(ctx, userId, n); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	if len(errs) == 0 {
		return ErrNoRecipient
	}
	return errors.Join(errs...)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, userId string, n models.ProximityNotification) error

func (f NotifierFunc) Notify(ctx context.Context, userId string, n models.ProximityNotification) error {
	return f(ctx, userId, n)
}
