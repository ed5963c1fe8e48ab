package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// 仅接受这两种容器格式，其余直接拒绝
var allowedExtensions = map[string]bool{
	".mp4": true,
	".mov": true,
}

var unsafeNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SafeFilename 清洗文件名，仅保留字母数字下划线连字符，扩展名转小写
func SafeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = strings.Trim(unsafeNamePattern.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = "video"
	}
	return name + ext
}

// SaveUploadFile 校验扩展名后把上传文件落到本地目录，返回本地路径。
// 文件名加 uuid 前缀防止覆盖。
func SaveUploadFile(fileHeader *multipart.FileHeader, destDir string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedExtensions[ext] {
		if ext == "" {
			ext = "未知类型"
		}
		return "", fmt.Errorf("仅支持 MP4/MOV，收到 %s", ext)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	uniqueName := fmt.Sprintf("%s_%s", uuidHex(), SafeFilename(fileHeader.Filename))
	targetPath := filepath.Join(destDir, uniqueName)

	dst, err := os.Create(targetPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(targetPath)
		return "", err
	}
	return targetPath, nil
}
