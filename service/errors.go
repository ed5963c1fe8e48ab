package service

import "fmt"

// MediaProbeError ffprobe 退出码非零或输出无法解析
type MediaProbeError struct {
	Detail string
}

func (e *MediaProbeError) Error() string {
	return fmt.Sprintf("视频探测失败: %s", e.Detail)
}

// MediaCaptureError ffmpeg 截帧失败
type MediaCaptureError struct {
	Detail string
}

func (e *MediaCaptureError) Error() string {
	return fmt.Sprintf("视频截帧失败: %s", e.Detail)
}

// StorageUploadError 对象存储返回非 2xx
type StorageUploadError struct {
	Status  int
	Message string
}

func (e *StorageUploadError) Error() string {
	return fmt.Sprintf("对象存储上传失败 (%d): %s", e.Status, e.Message)
}
