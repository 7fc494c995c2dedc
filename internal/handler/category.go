package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

type CategoryHandler struct {
	Categories *service.CategoryService
}

func NewCategoryHandler(categories *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{Categories: categories}
}

type categoryReq struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required,oneof=income expense"`
}

func (h *CategoryHandler) Create(c *gin.Context) {
	var req categoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	cat, err := h.Categories.Create(c.Request.Context(), req.Name, models.NormalizeTxType(req.Type))
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"category": cat})
}

func (h *CategoryHandler) List(c *gin.Context) {
	list, err := h.Categories.List(c.Request.Context(), models.NormalizeTxType(c.Query("type")))
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

func (h *CategoryHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Categories.Delete(c.Request.Context(), id); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{})
}
