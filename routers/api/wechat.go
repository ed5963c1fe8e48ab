package api

import (
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"video2blog-server/config"
	"video2blog-server/service"

	"github.com/gin-gonic/gin"
)

// 把项目内容发布为公众号草稿：下载远端截图 -> 上传素材 -> 创建草稿
func CreateWeChatDraft(c *gin.Context) {
	projectID := c.Query("project_id")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 project_id"})
		return
	}

	var req struct {
		AppID  string `json:"appid"`
		Secret string `json:"secret"`
	}
	// body 可选，未提供时用配置里的凭证
	_ = c.ShouldBindJSON(&req)
	appid := req.AppID
	secret := req.Secret
	if appid == "" {
		appid = config.AppConfig.WeChat.AppID
	}
	if secret == "" {
		secret = config.AppConfig.WeChat.Secret
	}
	if appid == "" || secret == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "需要提供 WECHAT_APPID/WECHAT_SECRET"})
		return
	}

	project, err := store.GetProject(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	if !requireProjectAccess(c, project) {
		return
	}

	content, err := store.GetContentByProjectID(projectID)
	if err != nil || content.MarkdownContent == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "内容未找到"})
		return
	}

	// 远端截图下载到临时文件供微信素材上传，单张失败跳过
	var images []service.DraftImage
	var tempPaths []string
	defer func() {
		for _, p := range tempPaths {
			os.Remove(p)
		}
	}()

	if content.AIRawData != nil {
		client := &http.Client{Timeout: 30 * time.Second}
		for _, step := range content.AIRawData.Steps {
			if step.ImagePath == "" {
				continue
			}
			localPath, err := downloadToTemp(client, step.ImagePath)
			if err != nil {
				continue
			}
			tempPaths = append(tempPaths, localPath)
			images = append(images, service.DraftImage{
				SourceURL: step.ImagePath,
				LocalPath: localPath,
			})
		}
	}

	summary := ""
	if content.AIRawData != nil {
		summary = content.AIRawData.Summary
	}

	mediaID, err := wechat.CreateDraft(appid, secret, project.Title, summary, content.MarkdownContent, images)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "draft_media_id": mediaID})
}

func downloadToTemp(client *http.Client, url string) (string, error) {
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", os.ErrNotExist
	}

	ext := filepath.Ext(path.Base(url))
	if ext == "" {
		ext = ".jpg"
	}
	tmp, err := os.CreateTemp("", "wechat-*"+ext)
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
