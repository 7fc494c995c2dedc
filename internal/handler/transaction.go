package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

// TransactionHandler 负责交易（记账）、回滚和退款接口
type TransactionHandler struct {
	Tx *service.TransactionService
}

func NewTransactionHandler(tx *service.TransactionService) *TransactionHandler {
	return &TransactionHandler{Tx: tx}
}

// ---------- 请求结构 ----------

type createTransactionReq struct {
	Type       string `json:"type" binding:"required"`
	Amount     string `json:"amount" binding:"required"` // 元，字符串
	AccountID  uint   `json:"account_id"`
	CategoryID uint   `json:"category_id"`
	BudgetID   uint   `json:"budget_id"`
	RefundOfID uint   `json:"refund_of_id"` // 仅 type=refund 时使用
	Currency   string `json:"currency" binding:"max=8"`
	OccurredAt string `json:"occurred_at"`
	Note       string `json:"note" binding:"max=255"`
}

type refundReq struct {
	Amount     string `json:"amount" binding:"required"`
	OccurredAt string `json:"occurred_at"`
	Note       string `json:"note" binding:"max=255"`
}

// ---------- 记一笔 ----------

func (h *TransactionHandler) Create(c *gin.Context) {
	var req createTransactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		util.Fail(c, err)
		return
	}
	occurred, err := parseTime(req.OccurredAt)
	if err != nil {
		util.Fail(c, err)
		return
	}

	tx, err := h.Tx.CompleteTransaction(c.Request.Context(), service.TransactionInput{
		Type:       models.NormalizeTxType(req.Type),
		Amount:     amount,
		AccountID:  optionalID(req.AccountID),
		CategoryID: optionalID(req.CategoryID),
		BudgetID:   optionalID(req.BudgetID),
		RefundOfID: optionalID(req.RefundOfID),
		Currency:   req.Currency,
		OccurredAt: occurred,
		Note:       req.Note,
	})
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"transaction": tx})
}

// ---------- 列表 ----------

func (h *TransactionHandler) List(c *gin.Context) {
	var f service.TransactionFilter
	var err error
	f.Type = models.NormalizeTxType(c.Query("type"))
	if f.AccountID, err = queryID(c, "account_id"); err != nil {
		util.Fail(c, err)
		return
	}
	if f.CategoryID, err = queryID(c, "category_id"); err != nil {
		util.Fail(c, err)
		return
	}
	if f.BudgetID, err = queryID(c, "budget_id"); err != nil {
		util.Fail(c, err)
		return
	}
	// 时间筛选：start / end（格式 YYYY-MM-DD，均包含当天）
	if f.Start, err = queryDate(c, "start"); err != nil {
		util.Fail(c, err)
		return
	}
	if f.End, err = queryDate(c, "end"); err != nil {
		util.Fail(c, err)
		return
	}
	f.Page, f.PageSize = pageParams(c)

	page, err := h.Tx.List(c.Request.Context(), f)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, page)
}

func (h *TransactionHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tx, err := h.Tx.Get(c.Request.Context(), id)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"transaction": tx})
}

// Rollback 删除即回滚：余额和预算一起恢复；重复删除不报错
func (h *TransactionHandler) Rollback(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	done, err := h.Tx.RollbackTransaction(c.Request.Context(), id)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"rolled_back": done})
}

// Summary 最近 10 笔交易的收支汇总
func (h *TransactionHandler) Summary(c *gin.Context) {
	sum, err := h.Tx.GetTransactionSummary(c.Request.Context())
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, sum)
}

// ---------- 退款 ----------

func (h *TransactionHandler) CreateRefund(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req refundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		util.Fail(c, err)
		return
	}
	occurred, err := parseTime(req.OccurredAt)
	if err != nil {
		util.Fail(c, err)
		return
	}
	refund, err := h.Tx.CreateRefund(c.Request.Context(), id, service.RefundInput{
		Amount: amount, OccurredAt: occurred, Note: req.Note,
	})
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"refund": refund})
}

func (h *TransactionHandler) ListRefunds(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	sum, err := h.Tx.GetTransactionRefunds(c.Request.Context(), id)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, sum)
}

func (h *TransactionHandler) CancelRefund(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	done, err := h.Tx.CancelRefund(c.Request.Context(), id)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"canceled": done})
}
