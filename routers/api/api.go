package api

import (
	"net/http"

	"video2blog-server/models"
	"video2blog-server/service"

	"github.com/gin-gonic/gin"
)

var (
	store  *models.Store
	wechat *service.WeChatClient
)

// Setup 注入 handler 依赖，在路由初始化时调用
func Setup(s *models.Store, w *service.WeChatClient) {
	store = s
	wechat = w
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
