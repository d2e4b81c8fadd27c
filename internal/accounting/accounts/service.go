package accounts

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/odyssey-erp/freightledger/internal/accounting/shared"
)

// DefaultCurrency applies when neither the input nor the parent carries one.
const DefaultCurrency = "USD"

// Service manages the chart of accounts.
type Service struct {
	repo  Repository
	newID func() uuid.UUID
}

// NewService constructs the chart of accounts service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, newID: uuid.New}
}

// List returns every account ordered by code.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// CreateAccount inserts a new account beneath parentCode. An empty parentCode
// creates a root account.
func (s *Service) CreateAccount(ctx context.Context, parentCode string, in CreateInput) (Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" || in.Name == "" {
		return Account{}, fmt.Errorf("%w: code and name required", shared.ErrInvalidHierarchy)
	}
	if !in.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown type %q", shared.ErrInvalidHierarchy, in.Type)
	}
	if in.Nature == "" {
		in.Nature = in.Type.NormalNature()
	}
	if in.Nature != in.Type.NormalNature() {
		return Account{}, fmt.Errorf("%w: %s account cannot have %s nature", shared.ErrInvalidHierarchy, in.Type, in.Nature)
	}

	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account := Account{
			ID:      s.newID(),
			Code:    in.Code,
			Name:    in.Name,
			Type:    in.Type,
			Nature:  in.Nature,
			IsGroup: in.IsGroup,
		}
		cur := in.Currency
		if parentCode == "" {
			if strings.Contains(in.Code, ".") {
				return fmt.Errorf("%w: root code %s must not contain a dot", shared.ErrInvalidHierarchy, in.Code)
			}
			if in.Level != 0 && in.Level != 1 {
				return fmt.Errorf("%w: root level must be 1", shared.ErrInvalidHierarchy)
			}
			account.Level = 1
		} else {
			parent, err := tx.GetByCodeForUpdate(ctx, parentCode)
			if err != nil {
				return err
			}
			if err := checkChild(parent, in); err != nil {
				return err
			}
			account.Level = parent.Level + 1
			account.ParentID = &parent.ID
			if cur == "" {
				cur = parent.Currency
			}
		}
		code, err := normalizeCurrency(cur)
		if err != nil {
			return err
		}
		account.Currency = code
		exists, err := tx.CodeExists(ctx, in.Code)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: code %s already exists", shared.ErrInvalidHierarchy, in.Code)
		}
		created, err = tx.Insert(ctx, account)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return created, nil
}

func checkChild(parent Account, in CreateInput) error {
	if !parent.IsGroup {
		return fmt.Errorf("%w: parent %s is not a group account", shared.ErrInvalidHierarchy, parent.Code)
	}
	if !parent.IsActive {
		return fmt.Errorf("%w: parent %s is inactive", shared.ErrInvalidHierarchy, parent.Code)
	}
	suffix, ok := strings.CutPrefix(in.Code, parent.Code+".")
	if !ok || suffix == "" || strings.Contains(suffix, ".") {
		return fmt.Errorf("%w: code %s does not extend parent %s", shared.ErrInvalidHierarchy, in.Code, parent.Code)
	}
	if in.Level != 0 && in.Level != parent.Level+1 {
		return fmt.Errorf("%w: level %d under parent level %d", shared.ErrInvalidHierarchy, in.Level, parent.Level)
	}
	if in.Type != parent.Type {
		return fmt.Errorf("%w: %s account under %s parent", shared.ErrInvalidHierarchy, in.Type, parent.Type)
	}
	return nil
}

func normalizeCurrency(code string) (string, error) {
	if code == "" {
		return DefaultCurrency, nil
	}
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return "", fmt.Errorf("%w: currency %q", shared.ErrInvalidHierarchy, code)
	}
	return unit.String(), nil
}

// GetAccount looks up an account by id or by code.
func (s *Service) GetAccount(ctx context.Context, codeOrID string) (Account, error) {
	if id, err := uuid.Parse(codeOrID); err == nil {
		return s.repo.GetByID(ctx, id)
	}
	return s.repo.GetByCode(ctx, codeOrID)
}

// GetByID returns the account with the given id.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCode returns the account with the given code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// ListChildren returns direct children of the account.
func (s *Service) ListChildren(ctx context.Context, id uuid.UUID) ([]Account, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListChildren(ctx, id)
}

// IsLeaf reports whether the account accepts postings.
func (s *Service) IsLeaf(ctx context.Context, id uuid.UUID) (bool, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return account.IsLeaf(), nil
}

// DeactivateAccount marks an account inactive. Accounts with a balance or
// active children stay active.
func (s *Service) DeactivateAccount(ctx context.Context, id uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !account.IsActive {
			return nil
		}
		if !account.Balance.IsZero() {
			return fmt.Errorf("%w: %s has balance %s", shared.ErrAccountInUse, account.Code, account.Balance.StringFixed(2))
		}
		children, err := tx.CountActiveChildren(ctx, id)
		if err != nil {
			return err
		}
		if children > 0 {
			return fmt.Errorf("%w: %s has %d active children", shared.ErrAccountInUse, account.Code, children)
		}
		return tx.SetActive(ctx, id, false)
	})
}

// SeedChart creates the chart's accounts parent-first, skipping codes that
// already exist. It returns the number of accounts created.
func (s *Service) SeedChart(ctx context.Context, chart Chart) (int, error) {
	nodes := append([]ChartNode(nil), chart.Accounts...)
	sort.SliceStable(nodes, func(i, j int) bool {
		return strings.Count(nodes[i].Code, ".") < strings.Count(nodes[j].Code, ".")
	})
	created := 0
	for _, node := range nodes {
		if _, err := s.repo.GetByCode(ctx, node.Code); err == nil {
			continue
		} else if !isNotFound(err) {
			return created, err
		}
		_, err := s.CreateAccount(ctx, ParentCode(node.Code), CreateInput{
			Code:     node.Code,
			Name:     node.Name,
			Type:     node.Type,
			IsGroup:  node.Group,
			Currency: node.Currency,
		})
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", node.Code, err)
		}
		created++
	}
	return created, nil
}
