package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

// LedgerHandler 负责账本、成员和邀请接口
type LedgerHandler struct {
	Ledgers *service.LedgerService
	Invites *service.InvitationService
}

func NewLedgerHandler(ledgers *service.LedgerService, invites *service.InvitationService) *LedgerHandler {
	return &LedgerHandler{Ledgers: ledgers, Invites: invites}
}

type ledgerReq struct {
	Name        string `json:"name" binding:"required,max=64"`
	Description string `json:"description" binding:"max=255"`
	Currency    string `json:"currency" binding:"max=8"`
}

type memberRoleReq struct {
	Role string `json:"role" binding:"required"`
}

type invitationReq struct {
	Role      string     `json:"role"`
	MaxUses   int        `json:"max_uses"` // 0 表示不限次数
	ExpiresAt *time.Time `json:"expires_at"`
}

// ---------- 账本 ----------

func (h *LedgerHandler) Create(c *gin.Context) {
	var req ledgerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	l, err := h.Ledgers.Create(c.Request.Context(), service.LedgerInput{
		Name: req.Name, Description: req.Description, Currency: req.Currency,
	})
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"ledger": l})
}

func (h *LedgerHandler) List(c *gin.Context) {
	list, err := h.Ledgers.List(c.Request.Context())
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *LedgerHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	l, err := h.Ledgers.Get(c.Request.Context(), id)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"ledger": l})
}

func (h *LedgerHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ledgerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	l, err := h.Ledgers.Update(c.Request.Context(), id, service.LedgerInput{
		Name: req.Name, Description: req.Description, Currency: req.Currency,
	})
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"ledger": l})
}

func (h *LedgerHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Ledgers.Delete(c.Request.Context(), id); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{})
}

func (h *LedgerHandler) SetDefault(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Ledgers.SetDefault(c.Request.Context(), id); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{})
}

// ---------- 成员 ----------

func (h *LedgerHandler) Members(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	list, err := h.Ledgers.Members(c.Request.Context(), id)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *LedgerHandler) UpdateMemberRole(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	var req memberRoleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	if err := h.Ledgers.UpdateMemberRole(c.Request.Context(), id, userID, models.Role(req.Role)); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{})
}

func (h *LedgerHandler) RemoveMember(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramID(c, "userId")
	if !ok {
		return
	}
	if err := h.Ledgers.RemoveMember(c.Request.Context(), id, userID); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{})
}

// Quit 当前用户退出账本，所有者不能退出
func (h *LedgerHandler) Quit(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Ledgers.Quit(c.Request.Context(), id); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{})
}

// ---------- 邀请 ----------

func (h *LedgerHandler) CreateInvitation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req invitationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	inv, err := h.Invites.Create(c.Request.Context(), id, service.InvitationInput{
		Role: models.Role(req.Role), MaxUses: req.MaxUses, ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"invitation": inv})
}

func (h *LedgerHandler) ListInvitations(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	list, err := h.Invites.List(c.Request.Context(), id)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *LedgerHandler) RevokeInvitation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Invites.Revoke(c.Request.Context(), id, c.Param("code")); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{})
}

// Join 使用邀请码加入账本
func (h *LedgerHandler) Join(c *gin.Context) {
	res, err := h.Invites.Redeem(c.Request.Context(), c.Param("code"))
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, res)
}
