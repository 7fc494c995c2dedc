package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

// ProfileHandler 当前用户自己的资料
type ProfileHandler struct {
	Auth *service.AuthService
}

func NewProfileHandler(auth *service.AuthService) *ProfileHandler {
	return &ProfileHandler{Auth: auth}
}

// UpdateProfileReq 更新资料请求
type UpdateProfileReq struct {
	DisplayName string `json:"display_name" binding:"max=64"`
}

// ChangePasswordReq 修改密码请求
type ChangePasswordReq struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// GetMe 返回当前登录用户信息（需要经过 AuthMiddleware）
func (h *ProfileHandler) GetMe(c *gin.Context) {
	user, err := h.Auth.Profile(c.Request.Context())
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"user": user})
}

// UpdateProfile 更新当前用户的昵称
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	user, err := h.Auth.UpdateProfile(c.Request.Context(), req.DisplayName)
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"user": user})
}

// ChangePassword 修改当前用户密码
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}
	if err := h.Auth.ChangePassword(c.Request.Context(), req.OldPassword, req.NewPassword); err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{})
}
