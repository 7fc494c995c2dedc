package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

type AccountHandler struct {
	Accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{Accounts: accounts}
}

type accountReq struct {
	Name           string `json:"name" binding:"required,max=64"`
	Type           string `json:"type" binding:"required,max=32"`
	SubType        string `json:"sub_type" binding:"max=32"`
	Currency       string `json:"currency" binding:"max=8"`
	OpeningBalance string `json:"opening_balance"` // 可为负数，例如信用卡
	IncludeInTotal *bool  `json:"include_in_total"`
}

func (r accountReq) input() (service.AccountInput, error) {
	in := service.AccountInput{
		Name: r.Name, Type: r.Type, SubType: r.SubType,
		Currency: r.Currency, IncludeInTotal: r.IncludeInTotal,
	}
	if r.OpeningBalance != "" {
		b, err := decimal.NewFromString(r.OpeningBalance)
		if err != nil {
			return in, apperr.Validation("invalid opening balance")
		}
		in.OpeningBalance = b
	}
	return in, nil
}

func (h *AccountHandler) Create(c *gin.Context) {
	var req accountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	in, err := req.input()
	if err != nil {
		util.Fail(c, err)
		return
	}
	acc, err := h.Accounts.Create(c.Request.Context(), in)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"account": acc})
}

// Update 只修改名称、类型等描述信息，余额只能通过交易变化
func (h *AccountHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req accountReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	in, err := req.input()
	if err != nil {
		util.Fail(c, err)
		return
	}
	acc, err := h.Accounts.Update(c.Request.Context(), id, in)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"account": acc})
}

func (h *AccountHandler) Deactivate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Accounts.Deactivate(c.Request.Context(), id); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{})
}

func (h *AccountHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	acc, err := h.Accounts.Get(c.Request.Context(), id)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"account": acc})
}

func (h *AccountHandler) List(c *gin.Context) {
	list, err := h.Accounts.List(c.Request.Context(), c.Query("include_inactive") == "true")
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *AccountHandler) Summary(c *gin.Context) {
	sum, err := h.Accounts.Summary(c.Request.Context())
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, sum)
}
