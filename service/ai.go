package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video2blog-server/models"
)

const stepPrompt = `你是"人生进化指南"主理人 Sky 的口吻，和读者并肩同行，不说教。请观看视频，用通俗、温暖、接地气的语言写给初学者，必要时举例或比喻，让零基础也能跟做。输出结构化 JSON（不要返回多余文本）。
输出格式:
{
  "headline": "吸引人、有深度、不浮夸的标题，避免"课程/教程/入门课"等字样，可用"技巧/诀窍/心法" framing",
  "summary": "一句话摘要",
  "steps": [
    {
      "step_index": 1,
      "timestamp": 125,
      "title": "步骤标题（简短）",
      "description": "详细操作说明，语气友好，结合"为什么这么做"+"怎么做"，给出注意点/踩坑提醒/小贴士，必要时举例或比喻"
    }
  ]
}
要求：
- 选择 4-10 个关键步骤，覆盖完整流程，时间戳使用秒且递增。
- 语言友好、口语化，避免生硬术语；有术语用括号解释；给出"为什么"和"怎么做"。
- 像同行者分享经验，可穿插"我"的体会/踩坑/提醒，让读者安心；适当比喻（风暴与星光、泥泞与道路等）。
- 如无明确步骤，提炼主要画面变化/操作节点，并说明意义。
- 若有代码或配置，描述核心片段的作用与效果，不粘贴长代码。
- 只返回 JSON。`

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// 模型不存在时依次回退的候选序列（配置的模型永远排第一）
var fallbackModels = []string{
	"models/gemini-2.5-flash",
	"models/gemini-2.0-flash",
	"models/gemini-flash-latest",
	"models/gemini-pro-latest",
}

// ErrUploadTimeout 视频上传后远端文件超时未就绪；只在引擎内部流转，对外降级为占位结果
var ErrUploadTimeout = errors.New("Gemini 视频上传超时")

// 单次模型调用的分类结果：模型不存在继续尝试下一个候选，其余失败立即终止候选循环
type attemptOutcome int

const (
	attemptOK attemptOutcome = iota
	attemptModelNotFound
	attemptFailed
)

// Engine Gemini 调用封装；未配置 API Key 时回退到确定性的占位生成，
// 远端调用链路的任何失败同样降级为占位结果，从不向流水线抛错。
type Engine struct {
	APIKey       string
	Model        string
	Timeout      time.Duration
	BaseURL      string
	PollInterval time.Duration
	HTTPClient   *http.Client
}

func NewEngine(apiKey, model string, timeoutSeconds int) *Engine {
	return &Engine{
		APIKey:       apiKey,
		Model:        model,
		Timeout:      time.Duration(timeoutSeconds) * time.Second,
		BaseURL:      defaultGeminiBaseURL,
		PollInterval: 2 * time.Second,
		HTTPClient:   &http.Client{},
	}
}

// Generate 提取视频的关键步骤。永远返回可用结果，err 恒为 nil（保留签名以符合调用方契约）。
func (e *Engine) Generate(videoPath string, duration int) (*models.AIRawData, error) {
	if e.APIKey == "" {
		return e.Synthetic(duration), nil
	}

	file, err := e.uploadVideo(videoPath)
	if err != nil {
		log.Printf("AIEngine: 视频上传失败，使用占位结果: %v", err)
		return e.Synthetic(duration), nil
	}

	for _, modelName := range e.modelCandidates() {
		log.Printf("AIEngine: using model %s", modelName)
		data, outcome := e.tryModel(modelName, file)
		switch outcome {
		case attemptOK:
			return data, nil
		case attemptModelNotFound:
			log.Printf("AIEngine: model %s not found, trying next", modelName)
			continue
		default:
			// 非"模型不存在"类错误不再尝试后续候选
			log.Printf("AIEngine: model %s call failed", modelName)
		}
		break
	}
	return e.Synthetic(duration), nil
}

// Synthetic 无 AI 后端时的确定性占位结果，保证流水线其余部分可测可用。
// 步骤数 = clamp(4, 8, ceil(duration/120))，时间戳按 max(10, duration/(count+1)) 秒等距排布。
func (e *Engine) Synthetic(duration int) *models.AIRawData {
	log.Println("AIEngine: using synthetic steps (no API key or fallback)")
	stepCount := int(math.Ceil(float64(duration) / 120))
	if stepCount < 4 {
		stepCount = 4
	}
	if stepCount > 8 {
		stepCount = 8
	}
	interval := duration / (stepCount + 1)
	if interval < 10 {
		interval = 10
	}

	steps := make([]models.Step, 0, stepCount)
	for i := 0; i < stepCount; i++ {
		ts := (i + 1) * interval
		if ts > duration-1 {
			ts = duration - 1
		}
		if ts < 0 {
			ts = 0
		}
		steps = append(steps, models.Step{
			StepIndex:   i + 1,
			Timestamp:   ts,
			Title:       fmt.Sprintf("步骤 %d", i+1),
			Description: fmt.Sprintf("在 %d 秒附近的关键操作描述。", ts),
		})
	}
	return &models.AIRawData{
		Summary: "自动生成的占位摘要。请替换为真实 AI 输出。",
		Steps:   steps,
	}
}

func (e *Engine) modelCandidates() []string {
	candidates := []string{e.Model}
	for _, m := range fallbackModels {
		if m != e.Model {
			candidates = append(candidates, m)
		}
	}
	return candidates
}

type geminiFile struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	State    string `json:"state"`
	MimeType string `json:"mimeType"`
}

// uploadVideo 上传视频到 Gemini File API，并轮询到文件状态 ACTIVE。
// 轮询固定 2 秒一次，超过 Timeout 返回 ErrUploadTimeout。
func (e *Engine) uploadVideo(videoPath string) (*geminiFile, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("打开视频失败: %w", err)
	}
	defer f.Close()

	mimeType := mime.TypeByExtension(filepath.Ext(videoPath))
	if mimeType == "" {
		mimeType = "video/mp4"
	}

	uploadURL := fmt.Sprintf("%s/upload/v1beta/files?key=%s&uploadType=media", e.BaseURL, e.APIKey)
	req, err := http.NewRequest(http.MethodPost, uploadURL, f)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("上传请求失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("上传状态码: %d, body: %s", resp.StatusCode, truncateBody(body))
	}

	var uploaded struct {
		File geminiFile `json:"file"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, fmt.Errorf("解析上传响应失败: %w", err)
	}

	file := uploaded.File
	if file.State != "PROCESSING" {
		if file.State == "ACTIVE" {
			return &file, nil
		}
		return nil, fmt.Errorf("Gemini 文件状态异常: %s", file.State)
	}

	timeout := time.After(e.Timeout)
	ticker := time.NewTicker(e.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return nil, ErrUploadTimeout
		case <-ticker.C:
			cur, err := e.getFile(file.Name)
			if err != nil {
				log.Printf("AIEngine: 轮询文件状态失败(重试中): %v", err)
				continue
			}
			switch cur.State {
			case "ACTIVE":
				return cur, nil
			case "PROCESSING":
				// 继续轮询
			default:
				return nil, fmt.Errorf("Gemini 文件状态异常: %s", cur.State)
			}
		}
	}
}

func (e *Engine) getFile(name string) (*geminiFile, error) {
	url := fmt.Sprintf("%s/v1beta/%s?key=%s", e.BaseURL, name, e.APIKey)
	resp, err := e.HTTPClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("文件查询状态码: %d", resp.StatusCode)
	}
	var file geminiFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return nil, err
	}
	return &file, nil
}

// tryModel 调用单个候选模型做结构化提取，返回解析结果与失败分类
func (e *Engine) tryModel(modelName string, file *geminiFile) (*models.AIRawData, attemptOutcome) {
	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": stepPrompt},
					{"file_data": map[string]interface{}{
						"mime_type": file.MimeType,
						"file_uri":  file.URI,
					}},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"response_mime_type": "application/json",
			"temperature":        0.2,
		},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, attemptFailed
	}

	url := fmt.Sprintf("%s/v1beta/%s:generateContent?key=%s", e.BaseURL, modelName, e.APIKey)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, attemptFailed
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: e.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, attemptFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, attemptModelNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("AIEngine: generateContent 状态码: %d, body: %s", resp.StatusCode, truncateBody(body))
		return nil, attemptFailed
	}

	var genResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, attemptFailed
	}
	if len(genResp.Candidates) == 0 {
		return nil, attemptFailed
	}

	var text strings.Builder
	for _, part := range genResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	// 期望整体是单个 JSON 对象，解析失败按普通失败处理（同样触发占位回退）
	var data models.AIRawData
	if err := json.Unmarshal([]byte(text.String()), &data); err != nil {
		log.Printf("AIEngine: 无法解析模型返回结果为 JSON: %v", err)
		return nil, attemptFailed
	}
	if len(data.Steps) == 0 {
		return nil, attemptFailed
	}
	return &data, attemptOK
}

func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > 2000 {
		return s[:2000] + "..."
	}
	return s
}
