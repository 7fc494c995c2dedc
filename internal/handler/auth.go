package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tiammomo/mamoji-sub001/internal/middleware"
	"github.com/tiammomo/mamoji-sub001/internal/service"
	"github.com/tiammomo/mamoji-sub001/internal/util"
)

const tokenCookie = "pl_token"

// AuthHandler 负责登录/注册相关接口
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler 构造函数
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

// ---------- 注册 ----------

type registerReq struct {
	Username        string `json:"username" binding:"required"`         // 3-20 位，字母数字下划线
	Password        string `json:"password" binding:"required"`         // 8-32 且强度检查
	ConfirmPassword string `json:"confirm_password" binding:"required"` // 必须和 Password 一致
	DisplayName     string `json:"display_name" binding:"max=64"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}

	// 两次输入一致
	if req.Password != req.ConfirmPassword {
		util.BadRequest(c, "两次输入的密码不一致")
		return
	}

	// 用户名规则、密码强度和唯一性由服务层检查，注册时同时创建默认账本
	user, err := h.Auth.Register(c.Request.Context(), service.RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		util.Fail(c, err)
		return
	}
	util.Success(c, util.Response{"user": user})
}

// ---------- 登录 ----------

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, "参数错误")
		return
	}

	res, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		util.Fail(c, err)
		return
	}

	// 同时写入 Cookie，方便下载等场景直接带上 token
	maxAge := int(time.Until(res.ExpiresAt).Seconds())
	if maxAge > 0 {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(tokenCookie, res.Token, maxAge, "/", "", false, true)
	}

	util.Success(c, util.Response{
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"user":       res.User,
	})
}

// Logout 注销当前 token（加入黑名单直到过期）
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.Auth.Logout(c.Request.Context(), middleware.CurrentToken(c)); err != nil {
		util.Fail(c, err)
		return
	}
	c.SetCookie(tokenCookie, "", -1, "/", "", false, true)
	util.Success(c, util.Response{})
}
