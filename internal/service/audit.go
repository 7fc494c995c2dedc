package service

import (
	"context"
	"strings"
	"time"

	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/store"
)

type AuditFilter struct {
	Start    *time.Time
	End      *time.Time
	Query    string
	Page     int
	PageSize int
}

type AuditView struct {
	ID        uint      `json:"id"`
	LedgerID  *uint     `json:"ledger_id"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditService reads back the caller's own audit trail.
type AuditService struct {
	st   *store.Store
	opts Options
}

func NewAuditService(st *store.Store, opts Options) *AuditService {
	return &AuditService{st: st, opts: opts.withDefaults()}
}

func (s *AuditService) List(ctx context.Context, f AuditFilter) (*Page[AuditView], error) {
	id, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	page, size := pageBounds(f.Page, f.PageSize, s.opts.PageSize)
	scopes := []store.Scope{store.Where("user_id = ?", id.UserID)}
	if f.Start != nil {
		scopes = append(scopes, store.Where("created_at >= ?", startOfDay(*f.Start)))
	}
	if f.End != nil {
		scopes = append(scopes, store.Where("created_at <= ?", endOfDay(*f.End)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		scopes = append(scopes, store.Where("path LIKE ?", "%"+q+"%"))
	}

	total, err := s.st.AuditLogs.SelectCount(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	list, err := s.st.AuditLogs.SelectList(ctx, append(scopes,
		store.OrderBy("created_at DESC, id DESC"),
		store.Offset((page-1)*size),
		store.Limit(size))...)
	if err != nil {
		return nil, err
	}
	items := make([]AuditView, 0, len(list))
	for _, l := range list {
		items = append(items, toAuditView(l))
	}
	return &Page[AuditView]{Items: items, Total: total, Page: page, PageSize: size}, nil
}

func toAuditView(l models.AuditLog) AuditView {
	return AuditView{
		ID: l.ID, LedgerID: l.LedgerID, Method: l.Method, Path: l.Path,
		Status: l.Status, IP: l.IP, UserAgent: l.UserAgent, CreatedAt: l.CreatedAt,
	}
}
