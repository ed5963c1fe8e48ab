package routers

import (
	"video2blog-server/models"
	"video2blog-server/routers/api"
	"video2blog-server/service"

	"github.com/gin-gonic/gin"
)

func InitRouter() *gin.Engine {
	api.Setup(models.NewStore(models.GormDB), service.NewWeChatClient())

	r := gin.Default()
	r.Static("/static", "./static")
	grp := r.Group("/api")
	{
		grp.GET("/health", api.Health)
		grp.POST("/projects/upload", api.UploadProject)
		grp.GET("/projects", api.ListProjects)
		grp.GET("/projects/:project_id", api.GetProject)
		grp.GET("/contents/:project_id", api.GetContent)
		grp.PUT("/contents/:project_id", api.UpdateContent)
		grp.GET("/export/:project_id", api.ExportProject)
		grp.POST("/wechat/draft", api.CreateWeChatDraft)
	}
	r.GET("/projects/:project_id/progress/wss", api.ProjectProgressWebSocket)
	return r
}
