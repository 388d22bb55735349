package formance

import (
	"context"
	"fmt"
	"math/big"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetUserPoints returns the mirrored points balance of a user.
// An account that was never touched has zero points.
func (s *Service) GetUserPoints(ctx context.Context, userId string) (int64, error) {
	zap.L().Debug("Getting user points from Formance", zap.String("user_id", userId))

	vols, err := s.getAccountVolumes(ctx, userAccount(userId))
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get points for user %s: %w", userId, err)
	}

	return pointsFromBalance(volumeBalance(vols, pointsAsset))
}

// getAccountVolumes fetches volumes for a single account via GetAccount.
func (s *Service) getAccountVolumes(ctx context.Context, address string) (map[string]shared.V2Volume, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		return nil, err
	}
	return resp.V2AccountResponse.Data.Volumes, nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// pointsFromBalance converts a POINTS/0 balance to an int64
func pointsFromBalance(raw *big.Int) (int64, error) {
	if raw == nil {
		return 0, nil
	}
	d := decimal.NewFromBigInt(raw, 0)
	if !raw.IsInt64() {
		return 0, fmt.Errorf("points balance %s out of range", d.String())
	}
	return d.IntPart(), nil
}
