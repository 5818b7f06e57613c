package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/souq/internal/approval"
	jobmetrics "github.com/odyssey-erp/souq/internal/jobs"
)

// WalletReader reads the booked ledger state for a credit.
type WalletReader interface {
	// LedgerAmount returns the amount booked for orderID and whether an entry exists.
	LedgerAmount(ctx context.Context, orderID int64) (int64, bool, error)
	Balance(ctx context.Context, vendorID int64) (int64, error)
}

// PoolWalletReader reads wallet_ledger and vendor_wallets through pgx.
type PoolWalletReader struct {
	Pool *pgxpool.Pool
}

// LedgerAmount implements WalletReader.
func (r PoolWalletReader) LedgerAmount(ctx context.Context, orderID int64) (int64, bool, error) {
	var amount int64
	err := r.Pool.QueryRow(ctx, `SELECT amount FROM wallet_ledger WHERE order_id = $1`, orderID).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return amount, true, nil
}

// Balance implements WalletReader.
func (r PoolWalletReader) Balance(ctx context.Context, vendorID int64) (int64, error) {
	var balance int64
	err := r.Pool.QueryRow(ctx, `SELECT balance FROM vendor_wallets WHERE vendor_id = $1`, vendorID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

// WalletCreditedJob confirms a credit against the ledger and reports the new
// vendor balance.
type WalletCreditedJob struct {
	Wallets WalletReader
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewWalletCreditedJob wires the handler.
func NewWalletCreditedJob(wallets WalletReader, logger *slog.Logger, metrics *jobmetrics.Metrics) *WalletCreditedJob {
	return &WalletCreditedJob{Wallets: wallets, Logger: logger, Metrics: metrics}
}

// Handle processes TaskWalletCredited tasks. A payload that disagrees with the
// ledger is dropped without retry.
func (j *WalletCreditedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Wallets == nil {
		return errors.New("wallet credited: handler not configured")
	}
	var credit approval.WalletCredit
	if err := json.Unmarshal(t.Payload(), &credit); err != nil {
		return asynq.SkipRetry
	}
	if credit.OrderID <= 0 || credit.VendorID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskWalletCredited)
	defer func() { err = tracker.End(err) }()

	logger := j.logger().With(
		slog.Int64("order_id", credit.OrderID),
		slog.Int64("vendor_id", credit.VendorID),
	)

	booked, ok, err := j.Wallets.LedgerAmount(ctx, credit.OrderID)
	if err != nil {
		logger.ErrorContext(ctx, "load ledger entry", slog.Any("error", err))
		return err
	}
	if !ok || booked != credit.Amount {
		logger.WarnContext(ctx, "wallet credit does not match ledger",
			slog.Bool("booked", ok), slog.Int64("ledger_amount", booked), slog.Int64("amount", credit.Amount))
		return fmt.Errorf("wallet credit for order %d not in ledger: %w", credit.OrderID, asynq.SkipRetry)
	}

	balance, err := j.Wallets.Balance(ctx, credit.VendorID)
	if err != nil {
		logger.ErrorContext(ctx, "load wallet balance", slog.Any("error", err))
		return err
	}
	j.Metrics.AddCredited(credit.Amount)
	logger.InfoContext(ctx, "vendor wallet credited",
		slog.Int64("gross", credit.Gross),
		slog.Int64("commission", credit.Commission),
		slog.Int64("amount", credit.Amount),
		slog.Int64("balance", balance),
	)
	return nil
}

func (j *WalletCreditedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
