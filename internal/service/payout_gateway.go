package service

import (
	"context"

	"engagement-rewards/internal/core/domain"
	"engagement-rewards/pkg/money"

	"github.com/rs/zerolog"
)

// LogPayoutGateway implements ports.PayoutGateway by logging the payout.
// No payment provider is integrated.
type LogPayoutGateway struct {
	log zerolog.Logger
}

// NewLogPayoutGateway creates a LogPayoutGateway.
func NewLogPayoutGateway(log zerolog.Logger) *LogPayoutGateway {
	return &LogPayoutGateway{log: log}
}

func (g *LogPayoutGateway) Payout(_ context.Context, w *domain.WithdrawalTransaction, bank domain.BankDetails) error {
	g.log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("reference", w.Reference).
		Str("user_id", w.UserID.String()).
		Str("amount", money.Format(w.Amount)).
		Str("bank_name", bank.BankName).
		Str("account_last4", bank.Last4()).
		Msg("payout dispatched")
	return nil
}
