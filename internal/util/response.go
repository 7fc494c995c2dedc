package util

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
)

// 通用返回结构里的 data 使用 map
type Response map[string]interface{}

// 成功时的业务码；失败时使用 apperr 中的编码
const CodeOK = 0

// Success 统一成功返回
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Fail 把领域错误映射为 HTTP 状态码和错误体；未知错误一律按 500 处理，不暴露细节
func Fail(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		_ = c.Error(err)
		e = apperr.ErrInternal
	} else if e.Kind == apperr.KindInternal {
		_ = c.Error(err)
	}
	msg := e.Message
	if e.Kind == apperr.KindInternal {
		msg = apperr.ErrInternal.Message
	}
	c.AbortWithStatusJSON(e.Kind.HTTPStatus(), gin.H{
		"code":    e.Code,
		"reason":  e.Reason,
		"message": msg,
	})
}

// BadRequest 请求参数错误
func BadRequest(c *gin.Context, msg string) {
	Fail(c, apperr.Validation(msg))
}
