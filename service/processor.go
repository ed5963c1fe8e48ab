package service

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"video2blog-server/models"

	"github.com/google/uuid"
)

// ProjectStore 流水线所需的持久化能力：按 id 读取、部分更新、内容落库
type ProjectStore interface {
	GetProject(id string) (*models.Project, error)
	UpdateProject(id string, fields map[string]interface{}) error
	UpsertContent(projectID string, raw *models.AIRawData, markdown string) error
}

// MediaProber 时长探测与截帧
type MediaProber interface {
	Duration(videoPath string) (int, error)
	Capture(videoPath string, timestamp int, wm *WatermarkOptions) ([]byte, error)
}

// StepGenerator 步骤提取引擎
type StepGenerator interface {
	Generate(videoPath string, duration int) (*models.AIRawData, error)
}

// ObjectUploader 对象存储上传
type ObjectUploader interface {
	Upload(bucket, objectName string, reader io.Reader, size int64) (string, error)
}

// Processor 驱动单个项目走完 探测 -> 生成 -> 截图上传 -> 渲染 -> 落库 的完整流水线。
// 每个阶段先落库状态/进度/错误再继续，轮询端随时能看到单调递增的进度。
// 所有可失败路径都在这里兜住并转成 failed 终态：未捕获的异常会被任务池吞掉，
// 项目将永远卡在 processing 且没有任何可见错误。
type Processor struct {
	Store           ProjectStore
	Media           MediaProber
	Engine          StepGenerator
	OSS             ObjectUploader
	MaxVideoMinutes int
	ImagesBucket    string
}

var (
	DefaultRunner    *Runner
	DefaultProcessor *Processor
)

// SubmitProject 把项目交给后台任务池处理（上传接口调用）
func SubmitProject(projectID, videoPath string) *Handle {
	return DefaultRunner.Submit(projectID, func() {
		DefaultProcessor.ProcessProject(projectID, videoPath)
	})
}

// ProcessProject 处理单个项目，状态机 pending -> processing -> completed|failed。
// 不返回错误：全部失败都持久化为 failed + error_msg。
func (p *Processor) ProcessProject(projectID, videoPath string) {
	// 无论成败都释放本地临时视频（尽力而为）
	defer func() {
		if err := os.Remove(videoPath); err != nil && !os.IsNotExist(err) {
			log.Printf("删除临时视频失败: %v", err)
		}
	}()

	project, err := p.Store.GetProject(projectID)
	if err != nil {
		// 项目不存在，无处可写状态，静默退出
		log.Printf("项目 %s 不存在，跳过处理: %v", projectID, err)
		return
	}

	p.update(project.ID, map[string]interface{}{
		"status":   models.ProjectStatusProcessing,
		"progress": 10,
	})

	duration, err := p.Media.Duration(videoPath)
	if err != nil {
		p.fail(project.ID, err.Error())
		return
	}
	if duration > p.MaxVideoMinutes*60 {
		p.fail(project.ID, fmt.Sprintf("视频超过 %d 分钟限制", p.MaxVideoMinutes))
		return
	}

	p.update(project.ID, map[string]interface{}{"duration": duration})

	data, err := p.Engine.Generate(videoPath, duration)
	if err != nil {
		p.fail(project.ID, err.Error())
		return
	}

	fields := map[string]interface{}{"progress": 60}
	if data.Headline != "" {
		fields["title"] = truncateRunes(data.Headline, 255)
	}
	p.update(project.ID, fields)

	for i := range data.Steps {
		// 时间戳钳位到 [0, duration-1] 由流水线负责，生成引擎不做
		ts := clampTimestamp(data.Steps[i].Timestamp, duration)
		data.Steps[i].Timestamp = ts

		// 水印模糊当前不启用，保持原始清晰度
		frame, err := p.Media.Capture(videoPath, ts, nil)
		if err != nil {
			p.fail(project.ID, err.Error())
			return
		}

		objectName := fmt.Sprintf("screenshots/%s/%d_%s.jpg", project.ID, ts, uuidHex())
		imageURL, err := p.OSS.Upload(p.ImagesBucket, objectName, bytes.NewReader(frame), int64(len(frame)))
		if err != nil {
			p.fail(project.ID, err.Error())
			return
		}
		data.Steps[i].ImagePath = imageURL
	}

	p.update(project.ID, map[string]interface{}{"progress": 90})

	markdown := BuildMarkdown(data.Summary, data.Steps)
	if err := p.Store.UpsertContent(project.ID, data, markdown); err != nil {
		p.fail(project.ID, "保存生成内容失败: "+err.Error())
		return
	}

	p.update(project.ID, map[string]interface{}{
		"status":    models.ProjectStatusCompleted,
		"progress":  100,
		"error_msg": nil,
	})
	log.Printf("项目 %s 处理完成", project.ID)
}

func clampTimestamp(ts, duration int) int {
	upper := duration - 1
	if upper < 0 {
		upper = 0
	}
	if ts > upper {
		ts = upper
	}
	if ts < 0 {
		ts = 0
	}
	return ts
}

func (p *Processor) update(projectID string, fields map[string]interface{}) {
	if err := p.Store.UpdateProject(projectID, fields); err != nil {
		log.Printf("更新项目 %s 状态失败: %v", projectID, err)
	}
}

func (p *Processor) fail(projectID, msg string) {
	log.Printf("项目 %s 处理失败: %s", projectID, msg)
	p.update(projectID, map[string]interface{}{
		"status":    models.ProjectStatusFailed,
		"progress":  100,
		"error_msg": msg,
	})
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func uuidHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
