package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

// ReportHandler 数据统计接口
type ReportHandler struct {
	Reports *service.ReportService
	Now     func() time.Time
}

func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{Reports: reports, Now: time.Now}
}

// period 解析 start / end，缺省为本月 1 日到今天
func (h *ReportHandler) period(c *gin.Context) (time.Time, time.Time, bool) {
	now := h.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := now
	s, err := queryDate(c, "start")
	if err != nil {
		util.Fail(c, err)
		return start, end, false
	}
	e, err := queryDate(c, "end")
	if err != nil {
		util.Fail(c, err)
		return start, end, false
	}
	if s != nil {
		start = *s
	}
	if e != nil {
		end = *e
	}
	return start, end, true
}

func (h *ReportHandler) Summary(c *gin.Context) {
	start, end, ok := h.period(c)
	if !ok {
		return
	}
	sum, err := h.Reports.Summary(c.Request.Context(), start, end)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, sum)
}

func (h *ReportHandler) ByCategory(c *gin.Context) {
	start, end, ok := h.period(c)
	if !ok {
		return
	}
	kind := models.NormalizeTxType(c.DefaultQuery("type", "expense"))
	list, err := h.Reports.ByCategory(c.Request.Context(), start, end, kind)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}

// Monthly 按月统计，?year=2025&month=12，缺省为当月
func (h *ReportHandler) Monthly(c *gin.Context) {
	now := h.Now().UTC()
	year, month := now.Year(), int(now.Month())
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			util.BadRequest(c, "year 参数错误")
			return
		}
		year = y
	}
	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			util.BadRequest(c, "month 参数错误")
			return
		}
		month = m
	}
	rep, err := h.Reports.Monthly(c.Request.Context(), year, month)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, rep)
}

// BalanceSheet 资产负债表，按币种分组
func (h *ReportHandler) BalanceSheet(c *gin.Context) {
	sheet, err := h.Reports.BalanceSheet(c.Request.Context())
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, sheet)
}

// Trend 收支趋势，?period=daily|weekly|monthly|yearly，缺省 monthly
func (h *ReportHandler) Trend(c *gin.Context) {
	start, end, ok := h.period(c)
	if !ok {
		return
	}
	period := service.TrendPeriod(strings.ToLower(c.DefaultQuery("period", "monthly")))
	list, err := h.Reports.Trend(c.Request.Context(), start, end, period)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"items": list})
}
