package mappings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/freightledger/internal/accounting/accounts"
	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
)

// AccountLookup provides the account reads needed to validate mappings.
type AccountLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (accounts.Account, error)
	GetAccount(ctx context.Context, codeOrID string) (accounts.Account, error)
}

// Service resolves business event categories to GL accounts.
type Service struct {
	repo     Repository
	accounts AccountLookup
	newID    func() uuid.UUID
}

// NewService constructs the mapping resolver.
func NewService(repo Repository, lookup AccountLookup) *Service {
	return &Service{repo: repo, accounts: lookup, newID: uuid.New}
}

// Active returns the active mapping row.
func (s *Service) Active(ctx context.Context) (Mapping, error) {
	return s.repo.GetActive(ctx)
}

// Resolve returns the account mapped to category by the active mapping.
func (s *Service) Resolve(ctx context.Context, category Category) (uuid.UUID, error) {
	if !category.Valid() {
		return uuid.Nil, fmt.Errorf("%w: unknown category %q", shared.ErrUnmappedCategory, category)
	}
	mapping, err := s.repo.GetActive(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	id, ok := mapping.Accounts[category]
	if !ok || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: %s", shared.ErrUnmappedCategory, category)
	}
	return id, nil
}

// ResolveAll resolves several categories against one snapshot of the active mapping.
func (s *Service) ResolveAll(ctx context.Context, categories ...Category) (map[Category]uuid.UUID, error) {
	mapping, err := s.repo.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[Category]uuid.UUID, len(categories))
	for _, c := range categories {
		id, ok := mapping.Accounts[c]
		if !ok || id == uuid.Nil {
			return nil, fmt.Errorf("%w: %s", shared.ErrUnmappedCategory, c)
		}
		out[c] = id
	}
	return out, nil
}

// SetMapping points category at accountID on the active mapping row.
func (s *Service) SetMapping(ctx context.Context, category Category, accountID uuid.UUID) error {
	if err := s.validate(ctx, category, accountID); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetActiveForUpdate(ctx)
		if err != nil {
			return err
		}
		return tx.SetCategory(ctx, current.ID, category, accountID)
	})
}

// Activate replaces the active mapping with set in one transaction.
func (s *Service) Activate(ctx context.Context, set map[Category]uuid.UUID, createdBy uuid.UUID) (Mapping, error) {
	for _, c := range sortedCategories(set) {
		if err := s.validate(ctx, c, set[c]); err != nil {
			return Mapping{}, err
		}
	}
	var activated Mapping
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetActiveForUpdate(ctx)
		switch {
		case err == nil:
			if err := tx.Deactivate(ctx, current.ID); err != nil {
				return err
			}
		case !errors.Is(err, shared.ErrNoActiveMapping):
			return err
		}
		activated, err = tx.Insert(ctx, Mapping{
			ID:        s.newID(),
			Accounts:  copySet(set),
			CreatedBy: createdBy,
		})
		return err
	})
	if err != nil {
		return Mapping{}, err
	}
	return activated, nil
}

func (s *Service) validate(ctx context.Context, category Category, accountID uuid.UUID) error {
	want, ok := categoryRules[category]
	if !ok {
		return fmt.Errorf("%w: unknown category %q", shared.ErrInvalidMapping, category)
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, shared.ErrAccountNotFound) {
			return fmt.Errorf("%w: %s account %s does not exist", shared.ErrInvalidMapping, category, accountID)
		}
		return err
	}
	if !account.IsLeaf() {
		return fmt.Errorf("%w: %s account %s is a group", shared.ErrInvalidMapping, category, account.Code)
	}
	if !account.IsActive {
		return fmt.Errorf("%w: %s account %s is inactive", shared.ErrInvalidMapping, category, account.Code)
	}
	if account.Type != want.Type || account.Nature != want.Nature {
		return fmt.Errorf("%w: %s requires %s/%s, account %s is %s/%s", shared.ErrInvalidMapping,
			category, want.Type, want.Nature, account.Code, account.Type, account.Nature)
	}
	return nil
}

// File is a YAML mapping keyed by category with account codes as values.
type File map[Category]string

// LoadFile parses a YAML mapping file.
func LoadFile(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing mapping file: %w", err)
	}
	for c := range f {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", shared.ErrInvalidMapping, c)
		}
	}
	return f, nil
}

// ActivateFile resolves the codes in f and activates the resulting mapping.
func (s *Service) ActivateFile(ctx context.Context, f File, createdBy uuid.UUID) (Mapping, error) {
	set := make(map[Category]uuid.UUID, len(f))
	for _, c := range sortedCategories(f) {
		account, err := s.accounts.GetAccount(ctx, f[c])
		if err != nil {
			return Mapping{}, fmt.Errorf("%s -> %s: %w", c, f[c], err)
		}
		set[c] = account.ID
	}
	return s.Activate(ctx, set, createdBy)
}

func sortedCategories[V any](m map[Category]V) []Category {
	out := make([]Category, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func copySet(set map[Category]uuid.UUID) map[Category]uuid.UUID {
	out := make(map[Category]uuid.UUID, len(set))
	for k, v := range set {
		out[k] = v
	}
	return out
}
