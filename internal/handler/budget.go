package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

type BudgetHandler struct {
	Budgets *service.BudgetService
}

func NewBudgetHandler(budgets *service.BudgetService) *BudgetHandler {
	return &BudgetHandler{Budgets: budgets}
}

type budgetReq struct {
	Name      string `json:"name" binding:"required,max=64"`
	Amount    string `json:"amount" binding:"required"`
	StartDate string `json:"start_date" binding:"required"` // YYYY-MM-DD
	EndDate   string `json:"end_date" binding:"required"`   // YYYY-MM-DD，包含当天
}

func (r budgetReq) input() (service.BudgetInput, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return service.BudgetInput{}, err
	}
	start, err := util.ValidateDate(r.StartDate)
	if err != nil {
		return service.BudgetInput{}, apperr.Validation("start_date must be YYYY-MM-DD")
	}
	end, err := util.ValidateDate(r.EndDate)
	if err != nil {
		return service.BudgetInput{}, apperr.Validation("end_date must be YYYY-MM-DD")
	}
	return service.BudgetInput{Name: r.Name, Amount: amount, StartDate: start, EndDate: end}, nil
}

var budgetStatusByName = map[string]models.BudgetStatus{
	"canceled":    models.BudgetCanceled,
	"active":      models.BudgetActive,
	"completed":   models.BudgetCompleted,
	"over_budget": models.BudgetOverBudget,
}

func (h *BudgetHandler) Create(c *gin.Context) {
	var req budgetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	in, err := req.input()
	if err != nil {
		util.Fail(c, err)
		return
	}
	b, err := h.Budgets.Create(c.Request.Context(), in)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"budget": b})
}

func (h *BudgetHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req budgetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	in, err := req.input()
	if err != nil {
		util.Fail(c, err)
		return
	}
	b, err := h.Budgets.Update(c.Request.Context(), id, in)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"budget": b})
}

func (h *BudgetHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Budgets.Cancel(c.Request.Context(), id); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{})
}

// Delete 软删除，已关联的交易保留引用
func (h *BudgetHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Budgets.Delete(c.Request.Context(), id); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{})
}

func (h *BudgetHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b, err := h.Budgets.Get(c.Request.Context(), id)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"budget": b})
}

func (h *BudgetHandler) List(c *gin.Context) {
	var status *models.BudgetStatus
	if raw := c.Query("status"); raw != "" {
		s, ok := budgetStatusByName[raw]
		if !ok {
			util.BadRequest(c, "unknown budget status")
			return
		}
		status = &s
	}
	list, err := h.Budgets.List(c.Request.Context(), status)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *BudgetHandler) Recalculate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b, err := h.Budgets.Recalculate(c.Request.Context(), id)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"budget": b})
}
