package aging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/freightledger/internal/allocation"
)

type memoryInvoice struct {
	id      uuid.UUID
	party   uuid.UUID
	issued  time.Time
	due     time.Time
	total   decimal.Decimal
	void    bool
	payable bool
}

type memoryRepo struct {
	mu          sync.Mutex
	invoices    []memoryInvoice
	allocations []allocation.Allocation
	calls       atomic.Int32
	err         error
}

func (m *memoryRepo) OpenItems(_ context.Context, spec allocation.BookSpec, asOf time.Time, partyID *uuid.UUID) ([]OpenItem, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []OpenItem
	for _, inv := range m.invoices {
		if inv.void || inv.payable != (spec.Book == allocation.BookPayables) {
			continue
		}
		if !inv.issued.Before(endOfDay(asOf)) {
			continue
		}
		if partyID != nil && inv.party != *partyID {
			continue
		}
		item := OpenItem{InvoiceID: inv.id, PartyID: inv.party, DueDate: inv.due, Total: inv.total, Allocated: decimal.Zero}
		for _, a := range m.allocations {
			if a.InvoiceID == inv.id && AppliedAsOf(a, asOf) {
				item.Allocated = item.Allocated.Add(a.Amount)
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (m *memoryRepo) Fingerprint(_ context.Context, spec allocation.BookSpec) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var count, voided int64
	total := decimal.Zero
	for _, inv := range m.invoices {
		if inv.payable != (spec.Book == allocation.BookPayables) {
			continue
		}
		count++
		if inv.void {
			voided++
			continue
		}
		total = total.Add(inv.total)
	}
	return formatFingerprint(count, voided, total), nil
}

// allocationBook lets allocation.Service write into the same memoryRepo the
// aging service reads from.
type allocationBook struct {
	repo     *memoryRepo
	vouchers map[uuid.UUID]allocation.Voucher
}

func (b *allocationBook) voucher(party uuid.UUID, amount string) uuid.UUID {
	id := uuid.New()
	b.vouchers[id] = allocation.Voucher{ID: id, Number: "RCP-" + amount, PartyID: party, Amount: d(amount), Unallocated: d(amount), Status: allocation.DocumentOpen}
	return id
}

func (b *allocationBook) GetInvoice(ctx context.Context, id uuid.UUID) (allocation.Invoice, error) {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	return b.LockInvoice(ctx, id)
}

func (b *allocationBook) GetVoucher(ctx context.Context, id uuid.UUID) (allocation.Voucher, error) {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	return b.LockVoucher(ctx, id)
}

func (b *allocationBook) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]allocation.Allocation, error) {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	var out []allocation.Allocation
	for _, a := range b.repo.allocations {
		if a.InvoiceID == invoiceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (b *allocationBook) CacheDrift(context.Context) ([]allocation.CacheDrift, error) {
	return nil, nil
}

func (b *allocationBook) WithTx(ctx context.Context, fn func(context.Context, allocation.TxRepository) error) error {
	b.repo.mu.Lock()
	defer b.repo.mu.Unlock()
	return fn(ctx, b)
}

func (b *allocationBook) LockInvoice(ctx context.Context, id uuid.UUID) (allocation.Invoice, error) {
	for _, inv := range b.repo.invoices {
		if inv.id != id {
			continue
		}
		status := allocation.DocumentOpen
		if inv.void {
			status = allocation.DocumentVoid
		}
		applied, _ := b.ActiveTotalForInvoice(ctx, id)
		return allocation.Invoice{
			ID: inv.id, Number: "INV-" + inv.total.StringFixed(2), PartyID: inv.party, IssueDate: inv.issued, DueDate: inv.due,
			Total: inv.total, Outstanding: allocation.Outstanding(inv.total, applied), Status: status,
		}, nil
	}
	return allocation.Invoice{}, allocation.ErrInvoiceNotFound
}

func (b *allocationBook) LockVoucher(_ context.Context, id uuid.UUID) (allocation.Voucher, error) {
	v, ok := b.vouchers[id]
	if !ok {
		return allocation.Voucher{}, allocation.ErrVoucherNotFound
	}
	return v, nil
}

func (b *allocationBook) ActiveTotalForInvoice(_ context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range b.repo.allocations {
		if a.InvoiceID == invoiceID && a.ReversedAt == nil {
			total = total.Add(a.Amount)
		}
	}
	return total, nil
}

func (b *allocationBook) ActiveTotalForVoucher(_ context.Context, voucherID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range b.repo.allocations {
		if a.VoucherID == voucherID && a.ReversedAt == nil {
			total = total.Add(a.Amount)
		}
	}
	return total, nil
}

func (b *allocationBook) InsertAllocation(_ context.Context, a allocation.Allocation) error {
	b.repo.allocations = append(b.repo.allocations, a)
	return nil
}

func (b *allocationBook) GetAllocationForUpdate(_ context.Context, id uuid.UUID) (allocation.Allocation, error) {
	for _, a := range b.repo.allocations {
		if a.ID == id {
			return a, nil
		}
	}
	return allocation.Allocation{}, allocation.ErrAllocationNotFound
}

func (b *allocationBook) MarkReversed(_ context.Context, id uuid.UUID, at time.Time) error {
	for i, a := range b.repo.allocations {
		if a.ID == id {
			b.repo.allocations[i].Status = allocation.StatusReversed
			b.repo.allocations[i].ReversedAt = &at
		}
	}
	return nil
}

func (b *allocationBook) SetInvoiceOutstanding(context.Context, uuid.UUID, decimal.Decimal) error {
	return nil
}

func (b *allocationBook) SetVoucherUnallocated(_ context.Context, id uuid.UUID, amount decimal.Decimal) error {
	v := b.vouchers[id]
	v.Unallocated = amount
	b.vouchers[id] = v
	return nil
}

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (m *memoryRepo) invoice(party uuid.UUID, issued, due, total string) uuid.UUID {
	id := uuid.New()
	m.invoices = append(m.invoices, memoryInvoice{id: id, party: party, issued: date(issued), due: date(due), total: d(total)})
	return id
}

func (m *memoryRepo) allocate(invoiceID uuid.UUID, amount string, at time.Time, reversedAt *time.Time) {
	m.allocations = append(m.allocations, allocation.Allocation{
		ID: uuid.New(), InvoiceID: invoiceID, Amount: d(amount), CreatedAt: at, ReversedAt: reversedAt,
	})
}

func TestBucketFor(t *testing.T) {
	asOf := date("2024-06-30")
	cases := map[string]Bucket{
		"2024-07-15": BucketCurrent,
		"2024-06-30": BucketCurrent,
		"2024-06-29": Bucket1To30,
		"2024-05-31": Bucket1To30,
		"2024-05-30": Bucket31To60,
		"2024-05-01": Bucket31To60,
		"2024-04-30": Bucket61To90,
		"2024-04-01": Bucket61To90,
		"2024-03-31": BucketOver90,
	}
	for due, want := range cases {
		require.Equal(t, want, BucketFor(asOf, date(due)), due)
	}
}

func TestARAgingReportBucketsOutstanding(t *testing.T) {
	repo := &memoryRepo{}
	alpha, beta := uuid.New(), uuid.New()
	paid := repo.invoice(alpha, "2024-04-01", "2024-05-01", "500.00")
	partial := repo.invoice(alpha, "2024-06-01", "2024-06-15", "300.00")
	repo.invoice(beta, "2024-01-01", "2024-02-01", "120.00")
	repo.invoice(beta, "2024-07-05", "2024-08-01", "999.00")
	repo.allocate(paid, "500.00", date("2024-05-02"), nil)
	repo.allocate(partial, "100.00", date("2024-06-20"), nil)

	svc := NewService(repo, nil, nil)
	rows, err := svc.ARAgingReport(context.Background(), date("2024-06-30"), nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byParty := map[uuid.UUID]Row{}
	for _, r := range rows {
		byParty[r.PartyID] = r
	}
	require.Equal(t, Bucket1To30, byParty[alpha].Bucket)
	require.Equal(t, "200.00", byParty[alpha].Amount.StringFixed(2))
	require.Equal(t, BucketOver90, byParty[beta].Bucket)
	require.Equal(t, "120.00", byParty[beta].Amount.StringFixed(2))

	rows, err = svc.ARAgingReport(context.Background(), date("2024-06-30"), &beta)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, beta, rows[0].PartyID)

	rows, err = svc.APAgingReport(context.Background(), date("2024-06-30"), nil)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestAgingHonoursAllocationHistory(t *testing.T) {
	repo := &memoryRepo{}
	party := uuid.New()
	inv := repo.invoice(party, "2024-01-10", "2024-02-10", "1000.00")
	reversed := date("2024-03-15")
	repo.allocate(inv, "400.00", date("2024-03-01").Add(10*time.Hour), &reversed)
	repo.allocate(inv, "250.00", date("2024-03-20").Add(9*time.Hour), nil)
	svc := NewService(repo, nil, nil)

	cases := []struct {
		asOf string
		want string
	}{
		{"2024-02-28", "1000.00"},
		{"2024-03-01", "600.00"},
		{"2024-03-14", "600.00"},
		{"2024-03-15", "1000.00"},
		{"2024-03-20", "750.00"},
	}
	for _, tc := range cases {
		rows, err := svc.ARAgingReport(context.Background(), date(tc.asOf), nil)
		require.NoError(t, err)
		require.Equal(t, tc.want, Total(rows).StringFixed(2), tc.asOf)
	}
}

func TestAgingTotalReconcilesWithAllocations(t *testing.T) {
	repo := &memoryRepo{}
	parties := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	asOf := date("2024-09-30")
	expected := decimal.Zero
	for i := 0; i < 12; i++ {
		party := parties[i%len(parties)]
		due := asOf.AddDate(0, 0, 20-i*11).Format(time.DateOnly)
		total := decimal.NewFromInt(int64(100 + i*37))
		id := repo.invoice(party, "2024-01-01", due, total.StringFixed(2))
		applied := decimal.NewFromInt(int64(i * 29)).Round(2)
		if applied.GreaterThan(total) {
			applied = total
		}
		if applied.IsPositive() {
			repo.allocate(id, applied.StringFixed(2), date("2024-02-01"), nil)
		}
		if out := allocation.Outstanding(total, applied); out.IsPositive() {
			expected = expected.Add(out)
		}
	}
	rows, err := NewService(repo, nil, nil).ARAgingReport(context.Background(), asOf, nil)
	require.NoError(t, err)
	require.True(t, expected.Equal(Total(rows)), "aging %s != outstanding %s", Total(rows), expected)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedReportFollowsAllocationChanges(t *testing.T) {
	ctx := context.Background()
	repo := &memoryRepo{}
	party := uuid.New()
	inv := repo.invoice(party, "2024-01-01", "2024-01-31", "800.00")
	cache := NewCache(newRedis(t), time.Minute)
	svc := NewService(repo, cache, nil)

	book := &allocationBook{repo: repo, vouchers: map[uuid.UUID]allocation.Voucher{}}
	receipt := book.voucher(party, "300.00")
	allocations := allocation.NewService(allocation.Receivables, book, cache, nil, nil)
	allocations.WithNow(func() time.Time { return date("2024-02-01") })

	rows, err := svc.ARAgingReport(ctx, date("2024-03-01"), nil)
	require.NoError(t, err)
	require.Equal(t, "800.00", Total(rows).StringFixed(2))
	_, err = svc.ARAgingReport(ctx, date("2024-03-01"), nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, repo.calls.Load())

	allocID, err := allocations.Allocate(ctx, receipt, inv, d("300.00"), uuid.New())
	require.NoError(t, err)

	rows, err = svc.ARAgingReport(ctx, date("2024-03-01"), nil)
	require.NoError(t, err)
	require.Equal(t, "500.00", Total(rows).StringFixed(2))
	require.EqualValues(t, 2, repo.calls.Load())

	require.NoError(t, allocations.Deallocate(ctx, allocID))
	rows, err = svc.ARAgingReport(ctx, date("2024-03-01"), nil)
	require.NoError(t, err)
	require.Equal(t, "800.00", Total(rows).StringFixed(2))
}

func TestCachedReportFollowsInvoiceChanges(t *testing.T) {
	ctx := context.Background()
	repo := &memoryRepo{}
	party := uuid.New()
	repo.invoice(party, "2024-01-01", "2024-01-31", "800.00")
	svc := NewService(repo, NewCache(newRedis(t), time.Minute), nil)

	rows, err := svc.ARAgingReport(ctx, date("2024-03-01"), nil)
	require.NoError(t, err)
	require.Equal(t, "800.00", Total(rows).StringFixed(2))

	repo.mu.Lock()
	late := repo.invoice(party, "2024-02-10", "2024-03-10", "250.00")
	repo.mu.Unlock()
	rows, err = svc.ARAgingReport(ctx, date("2024-03-01"), nil)
	require.NoError(t, err)
	require.Equal(t, "1050.00", Total(rows).StringFixed(2))

	repo.mu.Lock()
	for i := range repo.invoices {
		if repo.invoices[i].id == late {
			repo.invoices[i].void = true
		}
	}
	repo.mu.Unlock()
	rows, err = svc.ARAgingReport(ctx, date("2024-03-01"), nil)
	require.NoError(t, err)
	require.Equal(t, "800.00", Total(rows).StringFixed(2))
	require.EqualValues(t, 3, repo.calls.Load())
}

func TestOpenItemsSQLCutsOffByDate(t *testing.T) {
	sql := openItemsSQL(allocation.Payables)
	require.Contains(t, sql, "i.issue_date <= $3::date")
	require.Contains(t, sql, "a.created_at < $1")
	require.Contains(t, sql, "FROM supplier_invoices i")
	require.Contains(t, fingerprintSQL(allocation.Receivables), "FROM sales_invoices")
}

func TestCacheVersioning(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newRedis(t), time.Minute)

	ver, err := cache.Version(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, ver)

	key, err := cache.BuildKey(ctx, "aging", "ar")
	require.NoError(t, err)
	require.Equal(t, "aging:ar:v1", key)

	require.NoError(t, cache.Invalidate(ctx))
	key, err = cache.BuildKey(ctx, "aging", "ar")
	require.NoError(t, err)
	require.Equal(t, "aging:ar:v2", key)

	var nilCache *Cache
	key, err = nilCache.BuildKey(ctx, "aging", "ap")
	require.NoError(t, err)
	require.Equal(t, "aging:ap", key)
	require.NoError(t, nilCache.Invalidate(ctx))
}

func TestReportPropagatesRepositoryErrors(t *testing.T) {
	repo := &memoryRepo{err: errors.New("db down")}
	_, err := NewService(repo, NewCache(newRedis(t), time.Minute), nil).APAgingReport(context.Background(), date("2024-01-01"), nil)
	require.EqualError(t, err, "db down")
}
