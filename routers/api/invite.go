package api

import (
	"errors"
	"net/http"
	"strings"

	"video2blog-server/config"
	"video2blog-server/models"

	"github.com/gin-gonic/gin"
)

func inviteCodeFromRequest(c *gin.Context) string {
	if code := c.GetHeader("X-Invite-Code"); code != "" {
		return code
	}
	return c.Query("invite_code")
}

// consumeInvite 校验（并按需扣减）邀请码。未开启邀请码门禁时直接放行。
// 校验失败会写好 403 响应，调用方只需在 ok=false 时 return。
func consumeInvite(c *gin.Context, consume bool) (string, bool) {
	cfg := config.AppConfig
	if !cfg.Invite.Required {
		return "", true
	}
	code := strings.TrimSpace(inviteCodeFromRequest(c))
	if code == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "邀请码无效或未提供"})
		return "", false
	}

	invite, err := models.ConsumeInviteCode(store.DB, code, strings.TrimSpace(cfg.Invite.Code), cfg.Invite.MaxUses, consume)
	if err != nil {
		if errors.Is(err, models.ErrInviteInvalid) || errors.Is(err, models.ErrInviteExhausted) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "校验邀请码失败: " + err.Error()})
		}
		return "", false
	}
	return invite.Code, true
}

// requireProjectAccess 邀请码隔离：项目所属邀请码必须与当前请求一致。
// 失败时写好响应并返回 false。
func requireProjectAccess(c *gin.Context, project *models.Project) bool {
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到"})
		return false
	}
	if !config.AppConfig.Invite.Required {
		return true
	}
	code, ok := consumeInvite(c, false)
	if !ok {
		return false
	}
	if project.InviteCode != code {
		c.JSON(http.StatusForbidden, gin.H{"error": "无权访问该项目"})
		return false
	}
	return true
}
