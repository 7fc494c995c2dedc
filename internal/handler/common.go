package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

// paramID 解析路径中的数字 ID
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		util.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// queryID 解析可选的数字查询参数，缺省返回 nil
func queryID(c *gin.Context, name string) (*uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, apperr.Validation("invalid " + name)
	}
	v := uint(id)
	return &v, nil
}

// queryDate 解析可选的 YYYY-MM-DD 查询参数
func queryDate(c *gin.Context, name string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	t, err := util.ValidateDate(raw)
	if err != nil {
		return nil, apperr.Validation(name + " must be YYYY-MM-DD")
	}
	return &t, nil
}

// pageParams 分页参数，越界值交给服务层修正
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))
	return page, size
}

// parseAmount 金额统一用字符串传输，避免浮点误差
func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := util.ParseAmount(s)
	if err != nil {
		return decimal.Zero, apperr.Validation(err.Error())
	}
	return amount, nil
}

// parseTime 空字符串表示“现在”，由服务层填充
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := util.ParseDateTime(s)
	if err != nil {
		return time.Time{}, apperr.Validation(err.Error())
	}
	return t, nil
}

func optionalID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}
