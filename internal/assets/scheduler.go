package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"

	"github.com/odyssey-erp/freightledger/internal/accounting/journals"
	"github.com/odyssey-erp/freightledger/internal/shared"
)

// Poster is the slice of the posting engine the scheduler needs.
type Poster interface {
	PostDocument(ctx context.Context, in journals.PostingInput) (journals.PostResult, error)
	VoucherPosted(ctx context.Context, voucherNo string) (bool, error)
}

// Scheduler posts monthly straight-line depreciation.
type Scheduler struct {
	repo    Repository
	poster  Poster
	locker  *redislock.Client
	lockTTL time.Duration
	logger  *slog.Logger
}

// NewScheduler wires the scheduler. locker may be nil, in which case runs rely
// on voucher idempotency alone.
func NewScheduler(repo Repository, poster Poster, locker *redislock.Client, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{repo: repo, poster: poster, locker: locker, lockTTL: 5 * time.Minute, logger: logger}
}

// CalculateMonthlyDepreciation posts one entry per asset in service during the
// month containing asOf. Per-asset failures are collected in the result.
func (s *Scheduler) CalculateMonthlyDepreciation(ctx context.Context, asOf time.Time, createdBy uuid.UUID) (RunResult, error) {
	period := monthStart(asOf)
	result := RunResult{Period: period.Format("2006-01"), Skipped: []Skipped{}, Failed: []Failed{}}
	logger := s.logger.With(slog.String("period", result.Period))

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, shared.DepreciationLockKey(period), s.lockTTL, nil)
		switch {
		case errors.Is(err, redislock.ErrNotObtained):
			logger.Info("depreciation run already in progress")
			result.Contended = true
			return result, nil
		case err != nil:
			logger.Warn("depreciation lock unavailable; continuing without lock", slog.Any("error", err))
		default:
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
					logger.Warn("release depreciation lock", slog.Any("error", err))
				}
			}()
		}
	}

	list, err := s.repo.ListInService(ctx, period)
	if err != nil {
		return result, fmt.Errorf("list assets in service: %w", err)
	}
	for _, asset := range list {
		ref := AssetRef{ID: asset.ID, AssetNumber: asset.AssetNumber}
		created, reason, err := s.depreciate(ctx, asset, period, createdBy)
		switch {
		case err != nil:
			logger.Error("depreciate asset", slog.String("asset", asset.AssetNumber), slog.Any("error", err))
			result.Failed = append(result.Failed, Failed{AssetRef: ref, Error: err.Error()})
		case created:
			result.CreatedEntries++
		default:
			result.Skipped = append(result.Skipped, Skipped{AssetRef: ref, Reason: reason})
		}
	}
	logger.Info("depreciation run complete",
		slog.Int("created", result.CreatedEntries),
		slog.Int("skipped", len(result.Skipped)),
		slog.Int("failed", len(result.Failed)))
	return result, nil
}

func (s *Scheduler) depreciate(ctx context.Context, asset FixedAsset, period time.Time, createdBy uuid.UUID) (bool, SkipReason, error) {
	if asset.DepreciationExpenseAccountID == nil || asset.AccumulatedDepreciationAccountID == nil {
		return false, SkipMissingAccounts, nil
	}
	if !asset.MonthlyAmount().IsPositive() {
		return false, SkipNonPositive, nil
	}
	index := monthIndex(period) - monthIndex(asset.PurchaseDate)
	if index < 0 {
		return false, SkipNotInService, nil
	}
	if !asset.InServiceDuring(period) {
		return false, SkipDisposed, nil
	}
	amount := asset.ChargeFor(period)
	if !amount.IsPositive() {
		return false, SkipFullyDepreciated, nil
	}
	voucher := VoucherNo(period, asset.AssetNumber)
	posted, err := s.poster.VoucherPosted(ctx, voucher)
	if err != nil {
		return false, "", err
	}
	if posted {
		return false, SkipAlreadyPosted, nil
	}
	res, err := s.poster.PostDocument(ctx, journals.PostingInput{
		DocumentType: journals.DocumentDepreciation,
		DocumentID:   DocumentID(voucher),
		Date:         monthEnd(period),
		Description:  fmt.Sprintf("Depreciation %s %s", period.Format("2006-01"), asset.Name),
		Reference:    voucher,
		CreatedBy:    createdBy,
		Lines: []journals.PostingLine{
			{AccountID: *asset.DepreciationExpenseAccountID, Debit: amount, VoucherType: string(journals.DocumentDepreciation), VoucherNo: voucher},
			{AccountID: *asset.AccumulatedDepreciationAccountID, Credit: amount, VoucherType: string(journals.DocumentDepreciation), VoucherNo: voucher},
		},
	})
	if err != nil {
		return false, "", err
	}
	if res.AlreadyExisted {
		return false, SkipAlreadyPosted, nil
	}
	return true, "", nil
}
