package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tiammomo/mamoji-sub001/internal/apperr"
	"github.com/tiammomo/mamoji-sub001/internal/reqctx"
	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

const LedgerHeader = "X-Ledger-Id"

// LedgerMiddleware 选定本次请求操作的账本：
// 优先 X-Ledger-Id 请求头，其次 ?ledger_id=，都没有则使用用户的默认账本。
// 这里只负责选择，是否有权限由各个服务自己判断。
func LedgerMiddleware(ledgers *service.LedgerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(LedgerHeader))
		if raw == "" {
			raw = strings.TrimSpace(c.Query("ledger_id"))
		}

		var ledgerID uint
		if raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				util.Fail(c, apperr.Validation("invalid ledger id"))
				return
			}
			ledgerID = uint(id)
		} else {
			id, err := ledgers.DefaultLedgerID(c.Request.Context(), reqctx.UserID(c.Request.Context()))
			if err != nil {
				util.Fail(c, err)
				return
			}
			ledgerID = id
		}

		if ledgerID != 0 {
			c.Request = c.Request.WithContext(reqctx.WithLedger(c.Request.Context(), ledgerID))
		}
		c.Next()
	}
}
