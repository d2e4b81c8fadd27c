package mappings

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/freightledger/internal/accounting/accounts"
	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
)

type stubAccounts map[uuid.UUID]accounts.Account

func (s stubAccounts) GetByID(_ context.Context, id uuid.UUID) (accounts.Account, error) {
	a, ok := s[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (s stubAccounts) GetAccount(_ context.Context, codeOrID string) (accounts.Account, error) {
	for _, a := range s {
		if a.Code == codeOrID || a.ID.String() == codeOrID {
			return a, nil
		}
	}
	return accounts.Account{}, shared.ErrAccountNotFound
}

func (s stubAccounts) add(code string, typ accounts.Type, group bool) accounts.Account {
	a := accounts.Account{ID: uuid.New(), Code: code, Type: typ, Nature: typ.NormalNature(), IsGroup: group, IsActive: true}
	s[a.ID] = a
	return a
}

type memoryRepo struct {
	rows []Mapping
}

func (m *memoryRepo) active() int {
	for i, row := range m.rows {
		if row.IsActive {
			return i
		}
	}
	return -1
}

func (m *memoryRepo) GetActive(context.Context) (Mapping, error) {
	idx := m.active()
	if idx < 0 {
		return Mapping{}, shared.ErrNoActiveMapping
	}
	return m.rows[idx], nil
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make([]Mapping, len(m.rows))
	for i, row := range m.rows {
		row.Accounts = copySet(row.Accounts)
		snapshot[i] = row
	}
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.rows = snapshot
		return err
	}
	return nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetActiveForUpdate(ctx context.Context) (Mapping, error) {
	return t.repo.GetActive(ctx)
}

func (t *memoryTx) Deactivate(_ context.Context, id uuid.UUID) error {
	for i := range t.repo.rows {
		if t.repo.rows[i].ID == id {
			t.repo.rows[i].IsActive = false
		}
	}
	return nil
}

func (t *memoryTx) Insert(_ context.Context, m Mapping) (Mapping, error) {
	if t.repo.active() >= 0 {
		return Mapping{}, shared.ErrInvalidMapping
	}
	m.IsActive = true
	t.repo.rows = append(t.repo.rows, m)
	return m, nil
}

func (t *memoryTx) SetCategory(_ context.Context, id uuid.UUID, category Category, accountID uuid.UUID) error {
	for i := range t.repo.rows {
		if t.repo.rows[i].ID == id {
			t.repo.rows[i].Accounts[category] = accountID
			return nil
		}
	}
	return shared.ErrNoActiveMapping
}

func TestResolveWithoutActiveMapping(t *testing.T) {
	svc := NewService(&memoryRepo{}, stubAccounts{})
	_, err := svc.Resolve(context.Background(), CategoryCash)
	require.ErrorIs(t, err, shared.ErrNoActiveMapping)
}

func TestActivateAndResolve(t *testing.T) {
	ctx := context.Background()
	lookup := stubAccounts{}
	ar := lookup.add("1.2.3", accounts.TypeAsset, false)
	rev := lookup.add("4.1.1", accounts.TypeRevenue, false)
	repo := &memoryRepo{}
	svc := NewService(repo, lookup)

	first, err := svc.Activate(ctx, map[Category]uuid.UUID{CategoryAccountsReceivable: ar.ID}, uuid.Nil)
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, CategoryAccountsReceivable)
	require.NoError(t, err)
	require.Equal(t, ar.ID, got)

	_, err = svc.Resolve(ctx, CategorySalesRevenue)
	require.ErrorIs(t, err, shared.ErrUnmappedCategory)

	second, err := svc.Activate(ctx, map[Category]uuid.UUID{
		CategoryAccountsReceivable: ar.ID,
		CategorySalesRevenue:       rev.ID,
	}, uuid.Nil)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Len(t, repo.rows, 2)
	require.False(t, repo.rows[0].IsActive)

	resolved, err := svc.ResolveAll(ctx, CategoryAccountsReceivable, CategorySalesRevenue)
	require.NoError(t, err)
	require.Equal(t, rev.ID, resolved[CategorySalesRevenue])
}

func TestSetMappingValidatesAccount(t *testing.T) {
	ctx := context.Background()
	lookup := stubAccounts{}
	cash := lookup.add("1.1.1", accounts.TypeAsset, false)
	group := lookup.add("1.1", accounts.TypeAsset, true)
	payable := lookup.add("2.1.1", accounts.TypeLiability, false)
	svc := NewService(&memoryRepo{}, lookup)

	require.ErrorIs(t, svc.SetMapping(ctx, CategoryCash, cash.ID), shared.ErrNoActiveMapping)

	_, err := svc.Activate(ctx, map[Category]uuid.UUID{CategoryCash: cash.ID}, uuid.Nil)
	require.NoError(t, err)

	require.ErrorIs(t, svc.SetMapping(ctx, CategoryCash, group.ID), shared.ErrInvalidMapping)
	require.ErrorIs(t, svc.SetMapping(ctx, CategoryCash, payable.ID), shared.ErrInvalidMapping)
	require.ErrorIs(t, svc.SetMapping(ctx, CategoryCash, uuid.New()), shared.ErrInvalidMapping)
	require.ErrorIs(t, svc.SetMapping(ctx, Category("fuel"), cash.ID), shared.ErrInvalidMapping)

	require.NoError(t, svc.SetMapping(ctx, CategoryAccountsPayable, payable.ID))
	got, err := svc.Resolve(ctx, CategoryAccountsPayable)
	require.NoError(t, err)
	require.Equal(t, payable.ID, got)
}

func TestActivateRejectsWrongNatureAndKeepsCurrent(t *testing.T) {
	ctx := context.Background()
	lookup := stubAccounts{}
	cash := lookup.add("1.1.1", accounts.TypeAsset, false)
	expense := lookup.add("5.1.1", accounts.TypeExpense, false)
	repo := &memoryRepo{}
	svc := NewService(repo, lookup)
	_, err := svc.Activate(ctx, map[Category]uuid.UUID{CategoryCash: cash.ID}, uuid.Nil)
	require.NoError(t, err)

	_, err = svc.Activate(ctx, map[Category]uuid.UUID{CategorySalesTax: expense.ID}, uuid.Nil)
	require.ErrorIs(t, err, shared.ErrInvalidMapping)
	require.Len(t, repo.rows, 1)
	require.True(t, repo.rows[0].IsActive)
}

func TestEveryCategoryHasARule(t *testing.T) {
	require.Len(t, Categories(), len(categoryRules))
	for _, c := range Categories() {
		require.True(t, c.Valid(), c)
	}
}

func TestDefaultFileResolvesCodes(t *testing.T) {
	f, err := DefaultFile()
	require.NoError(t, err)
	require.Len(t, f, len(categoryRules))
	require.Equal(t, "1.2.9", f[CategoryAccumulatedDepreciation])

	_, err = LoadFile(strings.NewReader("fuel: \"5.1.9\"\n"))
	require.ErrorIs(t, err, shared.ErrInvalidMapping)
}

func TestActivateFile(t *testing.T) {
	ctx := context.Background()
	lookup := stubAccounts{}
	cash := lookup.add("1.1.1", accounts.TypeAsset, false)
	svc := NewService(&memoryRepo{}, lookup)

	m, err := svc.ActivateFile(ctx, File{CategoryCash: "1.1.1"}, uuid.Nil)
	require.NoError(t, err)
	require.Equal(t, cash.ID, m.Accounts[CategoryCash])

	_, err = svc.ActivateFile(ctx, File{CategoryCash: "9.9"}, uuid.Nil)
	require.ErrorIs(t, err, shared.ErrAccountNotFound)
}
