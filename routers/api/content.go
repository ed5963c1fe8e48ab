package api

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// 获取项目内容；不存在时创建占位记录返回
func GetContent(c *gin.Context) {
	projectID := c.Param("project_id")
	project, err := store.GetProject(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	if !requireProjectAccess(c, project) {
		return
	}

	content, err := store.EnsureContent(projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取内容失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, content)
}

// 人工编辑 Markdown（流水线完成后内容归编辑者所有）
func UpdateContent(c *gin.Context) {
	projectID := c.Param("project_id")
	project, err := store.GetProject(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	if !requireProjectAccess(c, project) {
		return
	}

	var req struct {
		Markdown string `json:"markdown"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := store.UpdateContentMarkdown(projectID, req.Markdown); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "内容未找到"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新内容失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

var asciiNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Content-Disposition 只允许 ASCII，避免响应头编码问题
func safeExportName(name string) string {
	clean := strings.Trim(asciiNamePattern.ReplaceAllString(name, "_"), "_")
	if clean == "" {
		return "export"
	}
	return clean
}

// 导出 Markdown 与步骤截图打包的 zip
func ExportProject(c *gin.Context) {
	projectID := c.Param("project_id")
	project, err := store.GetProject(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	if !requireProjectAccess(c, project) {
		return
	}

	content, err := store.GetContentByProjectID(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "内容未找到"})
		return
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	mdName := safeExportName(project.Title) + ".md"
	if w, err := zw.Create(mdName); err == nil {
		io.WriteString(w, content.MarkdownContent)
	}

	// 逐张下载远端截图塞进压缩包，单张失败跳过
	if content.AIRawData != nil {
		client := &http.Client{Timeout: 20 * time.Second}
		for _, step := range content.AIRawData.Steps {
			if step.ImagePath == "" {
				continue
			}
			resp, err := client.Get(step.ImagePath)
			if err != nil {
				continue
			}
			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				continue
			}
			if w, err := zw.Create("images/" + path.Base(step.ImagePath)); err == nil {
				io.Copy(w, resp.Body)
			}
			resp.Body.Close()
		}
	}

	if err := zw.Close(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "打包失败: " + err.Error()})
		return
	}

	filename := safeExportName(project.Title) + ".zip"
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}
