package service

import (
	"context"
	"strings"
	"time"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/store"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

type CategoryView struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryService struct {
	st    *store.Store
	authz *Authority
}

func NewCategoryService(st *store.Store, authz *Authority) *CategoryService {
	return &CategoryService{st: st, authz: authz}
}

func (s *CategoryService) Create(ctx context.Context, name string, t models.TxType) (*CategoryView, error) {
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if t != models.TxIncome && t != models.TxExpense {
		return nil, apperr.Validation("category type must be income or expense")
	}
	if err := util.ValidateCategory(name); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	n, err := s.st.Categories.SelectCount(ctx, store.Where("ledger_id = ? AND type = ? AND name = ?", id.LedgerID, t, name))
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, apperr.ErrConflict.WithMessage("category already exists")
	}
	c := &models.Category{UserID: id.UserID, LedgerID: id.LedgerID, Name: name, Type: t}
	if err := s.st.Categories.Insert(ctx, c); err != nil {
		return nil, err
	}
	return &CategoryView{ID: c.ID, Name: c.Name, Type: string(c.Type), CreatedAt: c.CreatedAt}, nil
}

func (s *CategoryService) List(ctx context.Context, t models.TxType) ([]CategoryView, error) {
	id, err := s.authz.Require(ctx, ActionView)
	if err != nil {
		return nil, err
	}
	scopes := []store.Scope{store.Where("ledger_id = ?", id.LedgerID), store.OrderBy("type ASC, id ASC")}
	if t != "" {
		scopes = append(scopes, store.Where("type = ?", t))
	}
	list, err := s.st.Categories.SelectList(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryView, 0, len(list))
	for _, c := range list {
		out = append(out, CategoryView{ID: c.ID, Name: c.Name, Type: string(c.Type), CreatedAt: c.CreatedAt})
	}
	return out, nil
}

// Delete removes a category no active transaction uses.
func (s *CategoryService) Delete(ctx context.Context, categoryID uint) error {
	id, err := s.authz.Require(ctx, ActionEditData)
	if err != nil {
		return err
	}
	c, err := s.st.Categories.SelectOne(ctx, store.Where("id = ? AND ledger_id = ?", categoryID, id.LedgerID))
	if err != nil {
		return notFound(err, apperr.ErrCategoryNotFound, "load category")
	}
	used, err := s.st.Transactions.SelectCount(ctx, store.Where("category_id = ? AND status = ?", c.ID, models.TxActive))
	if err != nil {
		return err
	}
	if used > 0 {
		return apperr.ErrConflict.WithMessage("category is used by active transactions")
	}
	return s.st.Categories.Delete(ctx, c.ID)
}
