package journals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/freightledger/internal/accounting/accounts"
	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/freightledger/internal/shared"
)

type memoryAccount struct {
	ref     AccountRef
	balance decimal.Decimal
}

type memoryState struct {
	accounts map[uuid.UUID]memoryAccount
	entries  map[uuid.UUID]JournalEntry
	lines    map[uuid.UUID][]JournalLine
	seq      int64
}

func (st memoryState) clone() memoryState {
	out := memoryState{
		accounts: make(map[uuid.UUID]memoryAccount, len(st.accounts)),
		entries:  make(map[uuid.UUID]JournalEntry, len(st.entries)),
		lines:    make(map[uuid.UUID][]JournalLine, len(st.lines)),
		seq:      st.seq,
	}
	for k, v := range st.accounts {
		out.accounts[k] = v
	}
	for k, v := range st.entries {
		out.entries[k] = v
	}
	for k, v := range st.lines {
		out.lines[k] = append([]JournalLine(nil), v...)
	}
	return out
}

type memoryRepo struct {
	state memoryState
	// racer, when set, commits a competing entry for the same document just
	// before InsertEntry runs. It survives the caller's rollback.
	racer      func(e JournalEntry) JournalEntry
	committed  []JournalEntry
	failInsert error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: memoryState{
		accounts: make(map[uuid.UUID]memoryAccount),
		entries:  make(map[uuid.UUID]JournalEntry),
		lines:    make(map[uuid.UUID][]JournalLine),
	}}
}

func (m *memoryRepo) addAccount(code, nature string, group bool) uuid.UUID {
	id := uuid.New()
	m.state.accounts[id] = memoryAccount{ref: AccountRef{
		ID: id, Code: code, Nature: accounts.Nature(nature), IsGroup: group, IsActive: true, Currency: "USD",
	}}
	return id
}

func (m *memoryRepo) balance(id uuid.UUID) decimal.Decimal {
	return m.state.accounts[id].balance
}

func findPostedIn(st *memoryState, docType DocumentType, docID uuid.UUID) (JournalEntry, bool) {
	for _, e := range st.entries {
		if e.DocumentType == docType && e.DocumentID == docID && e.Status != StatusReversed {
			return e, true
		}
	}
	return JournalEntry{}, false
}

func (m *memoryRepo) GetEntry(_ context.Context, id uuid.UUID) (JournalEntry, error) {
	e, ok := m.state.entries[id]
	if !ok {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	e.Lines = append([]JournalLine(nil), m.state.lines[id]...)
	return e, nil
}

func (m *memoryRepo) ListEntries(_ context.Context, filter ListFilter) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, e := range m.state.entries {
		if filter.DocumentType != "" && e.DocumentType != filter.DocumentType {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryRepo) FindPosted(_ context.Context, docType DocumentType, docID uuid.UUID) (JournalEntry, bool, error) {
	e, ok := findPostedIn(&m.state, docType, docID)
	return e, ok, nil
}

func (m *memoryRepo) VoucherPosted(_ context.Context, voucherNo string) (bool, error) {
	for id, lines := range m.state.lines {
		e := m.state.entries[id]
		if e.Status == StatusReversed || e.DocumentType == DocumentReversal {
			continue
		}
		for _, l := range lines {
			if l.VoucherNo == voucherNo {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memoryRepo) expected(id uuid.UUID) decimal.Decimal {
	acc := m.state.accounts[id]
	total := decimal.Zero
	for _, lines := range m.state.lines {
		for _, l := range lines {
			if l.AccountID == id {
				total = total.Add(acc.ref.Nature.Signed(l.Debit, l.Credit))
			}
		}
	}
	return total
}

func (m *memoryRepo) BalanceDrift(context.Context) ([]BalanceDrift, error) {
	var out []BalanceDrift
	for id, acc := range m.state.accounts {
		if exp := m.expected(id); !exp.Equal(acc.balance) {
			out = append(out, BalanceDrift{AccountID: id, Code: acc.ref.Code, Stored: acc.balance, Expected: exp})
		}
	}
	return out, nil
}

func (m *memoryRepo) UnbalancedEntries(context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id, lines := range m.state.lines {
		d, c := decimal.Zero, decimal.Zero
		for _, l := range lines {
			d = d.Add(l.Debit)
			c = c.Add(l.Credit)
		}
		if !d.Equal(c) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := m.state.clone()
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.state = snapshot
		for _, e := range m.committed {
			m.state.entries[e.ID] = e
		}
		return err
	}
	return nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) FindPosted(ctx context.Context, docType DocumentType, docID uuid.UUID) (JournalEntry, bool, error) {
	return t.repo.FindPosted(ctx, docType, docID)
}

func (t *memoryTx) LockAccounts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]AccountRef, error) {
	out := make(map[uuid.UUID]AccountRef, len(ids))
	for _, id := range ids {
		if acc, ok := t.repo.state.accounts[id]; ok {
			out[id] = acc.ref
		}
	}
	return out, nil
}

func (t *memoryTx) NextEntryNumber(context.Context) (string, error) {
	t.repo.state.seq++
	return formatEntryNumber(t.repo.state.seq), nil
}

func (t *memoryTx) InsertEntry(_ context.Context, e JournalEntry) error {
	if t.repo.failInsert != nil {
		return t.repo.failInsert
	}
	if t.repo.racer != nil {
		winner := t.repo.racer(e)
		t.repo.racer = nil
		t.repo.committed = append(t.repo.committed, winner)
		t.repo.state.entries[winner.ID] = winner
	}
	if _, dup := findPostedIn(&t.repo.state, e.DocumentType, e.DocumentID); dup {
		return shared.ErrDuplicatePosting
	}
	t.repo.state.entries[e.ID] = e
	return nil
}

func (t *memoryTx) InsertLines(_ context.Context, lines []JournalLine) error {
	for _, l := range lines {
		t.repo.state.lines[l.JournalEntryID] = append(t.repo.state.lines[l.JournalEntryID], l)
	}
	return nil
}

func (t *memoryTx) ApplyBalance(_ context.Context, id uuid.UUID, delta decimal.Decimal) error {
	acc, ok := t.repo.state.accounts[id]
	if !ok {
		return shared.ErrAccountNotFound
	}
	acc.balance = acc.balance.Add(delta)
	t.repo.state.accounts[id] = acc
	return nil
}

func (t *memoryTx) RecomputeBalance(_ context.Context, id uuid.UUID) (decimal.Decimal, error) {
	acc, ok := t.repo.state.accounts[id]
	if !ok {
		return decimal.Zero, shared.ErrAccountNotFound
	}
	acc.balance = t.repo.expected(id)
	t.repo.state.accounts[id] = acc
	return acc.balance, nil
}

func (t *memoryTx) GetEntryForUpdate(ctx context.Context, id uuid.UUID) (JournalEntry, error) {
	return t.repo.GetEntry(ctx, id)
}

func (t *memoryTx) MarkReversed(_ context.Context, id, reversedBy uuid.UUID, at time.Time) error {
	e, ok := t.repo.state.entries[id]
	if !ok || e.Status != StatusPosted {
		return fmt.Errorf("%w: %s", shared.ErrInvalidStatus, id)
	}
	e.Status = StatusReversed
	e.ReversedBy = &reversedBy
	e.ReversedAt = &at
	t.repo.state.entries[id] = e
	return nil
}

type memoryAudit struct {
	actions []string
}

func (a *memoryAudit) Record(_ context.Context, log internalShared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

type memoryMetrics struct {
	results map[string]int
}

func (m *memoryMetrics) ObservePosting(documentType, result string) {
	if m.results == nil {
		m.results = make(map[string]int)
	}
	m.results[documentType+":"+result]++
}
