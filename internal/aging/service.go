package aging

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/allocation"
)

// Service builds point-in-time aging reports for both books.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
}

// NewService wires the aging service. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ARAgingReport buckets receivables outstanding at the end of asOf.
func (s *Service) ARAgingReport(ctx context.Context, asOf time.Time, customerID *uuid.UUID) ([]Row, error) {
	return s.Report(ctx, allocation.Receivables, asOf, customerID)
}

// APAgingReport buckets payables outstanding at the end of asOf.
func (s *Service) APAgingReport(ctx context.Context, asOf time.Time, supplierID *uuid.UUID) ([]Row, error) {
	return s.Report(ctx, allocation.Payables, asOf, supplierID)
}

// Report buckets the open items of spec's book.
func (s *Service) Report(ctx context.Context, spec allocation.BookSpec, asOf time.Time, partyID *uuid.UUID) ([]Row, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	asOf = dateOnly(asOf)
	build := func(ctx context.Context) ([]Row, error) {
		items, err := s.repo.OpenItems(ctx, spec, asOf, partyID)
		if err != nil {
			return nil, err
		}
		return buildRows(items, asOf), nil
	}
	if s.cache == nil {
		return build(ctx)
	}
	party := "all"
	if partyID != nil {
		party = partyID.String()
	}
	fingerprint, err := s.repo.Fingerprint(ctx, spec)
	if err != nil {
		return nil, err
	}
	key, err := s.cache.BuildKey(ctx, "aging", string(spec.Book), fingerprint, asOf.Format(time.DateOnly), party)
	if err != nil {
		s.logger.Warn("aging cache unavailable", slog.Any("error", err))
		return build(ctx)
	}
	return singleflightBuild(ctx, key, func(ctx context.Context) ([]Row, error) {
		var rows []Row
		err := s.cache.FetchJSON(ctx, key, &rows, func(ctx context.Context) (any, error) {
			return build(ctx)
		})
		return rows, err
	})
}

func buildRows(items []OpenItem, asOf time.Time) []Row {
	type cell struct {
		party  uuid.UUID
		bucket Bucket
	}
	totals := make(map[cell]decimal.Decimal)
	for _, item := range items {
		outstanding := item.Outstanding()
		if !outstanding.IsPositive() {
			continue
		}
		k := cell{party: item.PartyID, bucket: BucketFor(asOf, item.DueDate)}
		totals[k] = totals[k].Add(outstanding)
	}
	rank := make(map[Bucket]int, len(bucketOrder))
	for i, b := range bucketOrder {
		rank[b] = i
	}
	rows := make([]Row, 0, len(totals))
	for k, amount := range totals {
		rows = append(rows, Row{PartyID: k.party, Bucket: k.bucket, Amount: amount})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PartyID != rows[j].PartyID {
			return rows[i].PartyID.String() < rows[j].PartyID.String()
		}
		return rank[rows[i].Bucket] < rank[rows[j].Bucket]
	})
	return rows
}
