package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"video2blog-server/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// OSSClient MinIO 对象存储客户端。
// 公开 URL 由配置的 Domain 确定性拼出（域名/桶/路径），不依赖上传响应体。
type OSSClient struct {
	Client *minio.Client
	Domain string
}

var OSS *OSSClient

// InitMinIO 初始化连接，在 main.go 中调用
func InitMinIO() {
	cfg := config.AppConfig.MinIO
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	domain := cfg.Domain
	if domain == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		domain = fmt.Sprintf("%s://%s", scheme, cfg.Endpoint)
	}
	OSS = &OSSClient{Client: client, Domain: domain}
	log.Println("MinIO 连接成功")
}

// PublicURL 拼出对象的公开访问地址
func (o *OSSClient) PublicURL(bucket, objectName string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(o.Domain, "/"), bucket, strings.TrimLeft(objectName, "/"))
}

// Upload 单次 PUT 上传，返回公开 URL。
// size 传 -1 表示大小未知。远端返回非 2xx 时包装为 StorageUploadError。
func (o *OSSClient) Upload(bucket, objectName string, reader io.Reader, size int64) (string, error) {
	ctx := context.Background()

	exists, err := o.Client.BucketExists(ctx, bucket)
	if err == nil && !exists {
		if err := o.Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err == nil {
			log.Printf("Bucket '%s' 已创建", bucket)
		}
	}

	_, err = o.Client.PutObject(ctx, bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentTypeFor(objectName),
	})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.StatusCode >= 300 {
			return "", &StorageUploadError{Status: errResp.StatusCode, Message: errResp.Message}
		}
		return "", &StorageUploadError{Status: 0, Message: err.Error()}
	}

	log.Printf("文件已上传: %s/%s", bucket, objectName)
	return o.PublicURL(bucket, objectName), nil
}

// UploadFile 上传本地文件
func (o *OSSClient) UploadFile(bucket, objectName, localPath string) (string, error) {
	ctx := context.Background()

	exists, err := o.Client.BucketExists(ctx, bucket)
	if err == nil && !exists {
		o.Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
	}

	_, err = o.Client.FPutObject(ctx, bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentTypeFor(objectName),
	})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.StatusCode >= 300 {
			return "", &StorageUploadError{Status: errResp.StatusCode, Message: errResp.Message}
		}
		return "", &StorageUploadError{Status: 0, Message: err.Error()}
	}
	return o.PublicURL(bucket, objectName), nil
}

// 根据文件扩展名确定 ContentType
func contentTypeFor(objectName string) string {
	switch filepath.Ext(objectName) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".md":
		return "text/markdown"
	default:
		return "application/octet-stream"
	}
}
