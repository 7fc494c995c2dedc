package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

// LogHandler 负责操作日志查询接口
type LogHandler struct {
	Audit *service.AuditService
}

func NewLogHandler(audit *service.AuditService) *LogHandler {
	return &LogHandler{Audit: audit}
}

// ListLogs 列出当前用户的操作日志（分页 + 时间 + 关键字）
func (h *LogHandler) ListLogs(c *gin.Context) {
	var f service.AuditFilter
	var err error
	if f.Start, err = queryDate(c, "start"); err != nil {
		util.Fail(c, err)
		return
	}
	if f.End, err = queryDate(c, "end"); err != nil {
		util.Fail(c, err)
		return
	}
	// 关键字搜索：q（匹配 path）
	f.Query = c.Query("q")
	f.Page, f.PageSize = pageParams(c)

	page, err := h.Audit.List(c.Request.Context(), f)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, page)
}
