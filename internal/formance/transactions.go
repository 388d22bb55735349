package formance

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"mojgrad-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates. All metadata is set inside the script via
// set_tx_meta() so each Formance transaction is self-describing.
// ---------------------------------------------------------------------------

const numscriptPointsCredit = `vars {
  asset $asset
  number $amount
  account $user_id
  string $event_type
  string $month
  string $reference
}

send [$asset $amount] (
  source = @world
  destination = @users:$user_id
)

set_tx_meta("event_type", $event_type)
set_tx_meta("month", $month)
set_tx_meta("reference", $reference)
`

// Debits never overdraw: the SQLite counters clamp at zero, so a debit
// never exceeds the balance already mirrored here.
const numscriptPointsDebit = `vars {
  asset $asset
  number $amount
  account $user_id
  string $event_type
  string $month
  string $reference
}

send [$asset $amount] (
  source = @users:$user_id
  destination = @world
)

set_tx_meta("event_type", $event_type)
set_tx_meta("month", $month)
set_tx_meta("reference", $reference)
`

// RecordAdjustments posts one Formance transaction per applied point change.
// Adjustments without an applied delta are skipped. Reposting the same
// adjustment is a no-op thanks to the Formance reference.
func (s *Service) RecordAdjustments(ctx context.Context, adjustments []models.PointAdjustment) error {
	var errs []error
	for _, adj := range adjustments {
		if err := s.recordAdjustment(ctx, adj); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) recordAdjustment(ctx context.Context, adj models.PointAdjustment) error {
	postTx, ok := buildPostTransaction(adj)
	if !ok {
		return nil
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			return nil // idempotent
		}
		return fmt.Errorf("error recording %s for user %s: %w", adj.Type, adj.UserId, err)
	}

	zap.L().Debug("Point adjustment recorded in Formance",
		zap.String("user_id", adj.UserId),
		zap.String("type", adj.Type),
		zap.Int64("delta", adj.Delta),
		zap.String("reference", *postTx.Reference))
	return nil
}

// buildPostTransaction maps an adjustment onto the credit or debit script
func buildPostTransaction(adj models.PointAdjustment) (shared.V2PostTransaction, bool) {
	if adj.Delta == 0 || adj.UserId == "" {
		return shared.V2PostTransaction{}, false
	}

	script := numscriptPointsCredit
	amount := adj.Delta
	if amount < 0 {
		script = numscriptPointsDebit
		amount = -amount
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(transactionReference(adj)),
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars: map[string]string{
				"asset":      pointsAsset,
				"amount":     strconv.FormatInt(amount, 10),
				"user_id":    adj.UserId,
				"event_type": adj.Type,
				"month":      adj.Month,
				"reference":  adj.Reference,
			},
		},
	}
	if !adj.At.IsZero() {
		at := adj.At
		postTx.Timestamp = &at
	}
	return postTx, true
}

// transactionReference is unique per applied change. The audit row id is
// preferred; without one it falls back to reference, user and type.
func transactionReference(adj models.PointAdjustment) string {
	if adj.Id != "" {
		return "points-" + adj.Id
	}
	return fmt.Sprintf("points-%s-%s-%s", adj.Reference, adj.UserId, adj.Type)
}

func strPtr(s string) *string { return &s }
