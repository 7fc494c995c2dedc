package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/models"
	"github.com/tiammomo/mamoji-sub001/internal/reqctx"
	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

const (
	ctxUserKey  = "currentUser"
	ctxTokenKey = "currentToken"
)

// TokenFromRequest 按 Header、查询参数、Cookie 的顺序取 token
func TokenFromRequest(c *gin.Context) string {
	// 1) Header: Authorization: Bearer xxx
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	// 2) URL 查询参数 ?token=xxx（用于下载等无法自定义 Header 的场景）
	if tok := c.Query("token"); tok != "" {
		return tok
	}
	// 3) Cookie pl_token
	if cookie, err := c.Cookie("pl_token"); err == nil {
		return cookie
	}
	return ""
}

// AuthMiddleware 校验 token，并把当前用户写入请求的 context
func AuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := TokenFromRequest(c)
		if tokenStr == "" {
			util.Fail(c, apperr.ErrUnauthorized)
			return
		}

		user, err := auth.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			util.Fail(c, err)
			return
		}

		ctx := reqctx.WithIdentity(c.Request.Context(), reqctx.Identity{UserID: user.ID, Username: user.Username})
		c.Request = c.Request.WithContext(ctx)
		c.Set(ctxUserKey, user)
		c.Set(ctxTokenKey, tokenStr)
		c.Next()
	}
}

// CurrentUser 取出 AuthMiddleware 放入的用户
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

// CurrentToken 取出本次请求使用的 token，注销时使用
func CurrentToken(c *gin.Context) string {
	return c.GetString(ctxTokenKey)
}
