package service

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// WatermarkOptions 截帧时对水印区域做局部模糊的参数。
// 全部使用相对帧尺寸的比例，水印位置不随分辨率变化。
type WatermarkOptions struct {
	WidthRatio  float64
	HeightRatio float64
	XRatio      float64
	YRatio      float64
	Blur        int
}

// FFmpeg 包装外部 ffprobe / ffmpeg 二进制
type FFmpeg struct {
	FFprobePath string
	FFmpegPath  string
}

func NewFFmpeg(ffprobePath, ffmpegPath string) *FFmpeg {
	return &FFmpeg{FFprobePath: ffprobePath, FFmpegPath: ffmpegPath}
}

// Duration 通过 ffprobe 读取视频时长（秒，向下取整）
func (f *FFmpeg) Duration(videoPath string) (int, error) {
	cmd := exec.Command(f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, &MediaProbeError{Detail: fmt.Sprintf("ffprobe failed: %s", strings.TrimSpace(stderr.String()))}
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil || seconds < 0 {
		return 0, &MediaProbeError{Detail: "无法解析视频时长"}
	}
	return int(seconds), nil
}

// Resolution 通过 ffprobe 读取视频分辨率 (width, height)
func (f *FFmpeg) Resolution(videoPath string) (int, int, error) {
	cmd := exec.Command(f.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		videoPath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, 0, &MediaProbeError{Detail: fmt.Sprintf("ffprobe failed: %s", strings.TrimSpace(stderr.String()))}
	}
	parts := strings.SplitN(strings.TrimSpace(stdout.String()), "x", 2)
	if len(parts) != 2 {
		return 0, 0, &MediaProbeError{Detail: "无法解析视频分辨率"}
	}
	width, err1 := strconv.Atoi(parts[0])
	height, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || width <= 0 || height <= 0 {
		return 0, 0, &MediaProbeError{Detail: "无法解析视频分辨率"}
	}
	return width, height, nil
}

// watermarkRegion 根据比例计算水印矩形并收缩进画面内。
// 越界时整体平移，不缩放，保证模糊区域几何不变形。
func watermarkRegion(width, height int, opts WatermarkOptions) (x, y, w, h int) {
	w = int(float64(width) * opts.WidthRatio)
	if w < 4 {
		w = 4
	}
	h = int(float64(height) * opts.HeightRatio)
	if h < 4 {
		h = 4
	}
	x = int(float64(width) * opts.XRatio)
	y = int(float64(height) * opts.YRatio)
	if x > width-w {
		x = width - w
	}
	if x < 0 {
		x = 0
	}
	if y > height-h {
		y = height - h
	}
	if y < 0 {
		y = 0
	}
	return x, y, w, h
}

// blurFilter 生成两层合成滤镜：复制整帧 -> 裁出水印区域做 boxblur -> 原位贴回
func blurFilter(x, y, w, h, blur int) string {
	return fmt.Sprintf(
		"split[a][b];[b]crop=%d:%d:%d:%d,boxblur=%d[wm];[a][wm]overlay=%d:%d",
		w, h, x, y, blur, x, y,
	)
}

// Capture 在 timestamp 秒处截取一帧，返回 JPEG 字节。
// wm 非空时对水印区域做局部模糊；分辨率探测失败则静默跳过模糊（尽力而为，绝不因此失败）。
func (f *FFmpeg) Capture(videoPath string, timestamp int, wm *WatermarkOptions) ([]byte, error) {
	var filter string
	if wm != nil {
		width, height, err := f.Resolution(videoPath)
		if err == nil {
			x, y, w, h := watermarkRegion(width, height, *wm)
			if x+w <= width && y+h <= height {
				filter = blurFilter(x, y, w, h, wm.Blur)
			}
		}
	}

	args := []string{
		"-ss", strconv.Itoa(timestamp),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
	}
	if filter != "" {
		args = append(args, "-vf", filter)
	}
	args = append(args, "-f", "image2", "-c:v", "mjpeg", "pipe:1")

	cmd := exec.Command(f.FFmpegPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &MediaCaptureError{Detail: fmt.Sprintf("ffmpeg failed: %s", strings.TrimSpace(stderr.String()))}
	}
	return stdout.Bytes(), nil
}
