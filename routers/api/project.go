package api

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"video2blog-server/config"
	"video2blog-server/models"
	"video2blog-server/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// 上传视频并创建项目，后台流水线异步处理
func UploadProject(c *gin.Context) {
	code, ok := consumeInvite(c, true)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少上传文件: " + err.Error()})
		return
	}

	cfg := config.AppConfig
	destDir := filepath.Join(cfg.Server.StaticDir, cfg.Server.VideosDir)
	localPath, err := service.SaveUploadFile(fileHeader, destDir)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 源视频同步存一份到对象存储，项目记录保存远端地址
	objectName := fmt.Sprintf("videos/%s", filepath.Base(localPath))
	remoteURL, err := service.OSS.UploadFile(cfg.MinIO.VideosBucket, objectName, localPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "上传视频到对象存储失败: " + err.Error()})
		return
	}

	title := strings.TrimSuffix(fileHeader.Filename, filepath.Ext(fileHeader.Filename))
	if title == "" {
		title = "未命名视频"
	}

	project := models.Project{
		ID:             uuid.NewString(),
		Title:          title,
		InviteCode:     code,
		SourceType:     "local_file",
		LocalVideoPath: remoteURL,
		Status:         models.ProjectStatusPending,
		Progress:       0,
	}
	if err := store.CreateProject(&project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建项目失败: " + err.Error()})
		return
	}

	// 提前创建空内容记录，避免前端轮询出现 404
	if _, err := store.EnsureContent(project.ID); err != nil {
		log.Printf("创建占位内容失败: %v", err)
	}

	service.SubmitProject(project.ID, localPath)

	c.JSON(http.StatusOK, gin.H{
		"project_id": project.ID,
		"status":     project.Status,
	})
}

// 获取项目详情（轮询状态/进度用）
func GetProject(c *gin.Context) {
	projectID := c.Param("project_id")
	project, err := store.GetProject(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	if !requireProjectAccess(c, project) {
		return
	}
	c.JSON(http.StatusOK, project)
}

// 项目列表；开启邀请码门禁时只返回当前邀请码名下的项目
func ListProjects(c *gin.Context) {
	var filterCode string
	if config.AppConfig.Invite.Required {
		code, ok := consumeInvite(c, false)
		if !ok {
			return
		}
		filterCode = code
	}

	projects, err := store.ListProjects(filterCode)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取项目列表失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, projects)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 项目进度 WebSocket 推送：先推当前状态，随后轮询 DB，状态或进度有变化就推送，
// 到达终态（completed/failed）后推最终状态并关闭连接
func ProjectProgressWebSocket(c *gin.Context) {
	projectID := c.Param("project_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer conn.Close()

	project, err := store.GetProject(projectID)
	if err != nil {
		conn.WriteJSON(map[string]interface{}{"error": "项目未找到: " + err.Error()})
		return
	}
	_ = conn.WriteJSON(project)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	prevStatus := project.Status
	prevProgress := project.Progress

	for range ticker.C {
		cur, err := store.GetProject(projectID)
		if err != nil {
			continue
		}

		if cur.Status != prevStatus || cur.Progress != prevProgress {
			if err := conn.WriteJSON(cur); err != nil {
				break
			}
			prevStatus = cur.Status
			prevProgress = cur.Progress
		}

		if cur.Status == models.ProjectStatusCompleted || cur.Status == models.ProjectStatusFailed {
			_ = conn.WriteJSON(cur)
			break
		}
	}
}
