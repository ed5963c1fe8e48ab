package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const defaultWeChatBaseURL = "https://api.weixin.qq.com"

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// WeChatClient 公众号草稿发布客户端。
// access_token 按 (appid, secret) 维度进程内缓存，带过期时间，惰性刷新；
// Now 与 BaseURL 可注入，测试时可替换假时钟与假服务端。
type WeChatClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Now        func() time.Time

	mu     sync.Mutex
	tokens map[string]cachedToken
}

func NewWeChatClient() *WeChatClient {
	return &WeChatClient{
		BaseURL:    defaultWeChatBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Now:        time.Now,
		tokens:     make(map[string]cachedToken),
	}
}

// AccessToken 获取 access_token，缓存有效期内（预留 60 秒余量）直接复用
func (w *WeChatClient) AccessToken(appid, secret string) (string, error) {
	if appid == "" || secret == "" {
		return "", fmt.Errorf("WECHAT_APPID 或 WECHAT_SECRET 未配置")
	}
	key := appid + "|" + secret

	w.mu.Lock()
	cached, ok := w.tokens[key]
	w.mu.Unlock()
	if ok && cached.expiresAt.After(w.Now().Add(60*time.Second)) {
		return cached.token, nil
	}

	tokenURL := fmt.Sprintf("%s/cgi-bin/token?grant_type=client_credential&appid=%s&secret=%s",
		w.BaseURL, url.QueryEscape(appid), url.QueryEscape(secret))
	resp, err := w.HTTPClient.Get(tokenURL)
	if err != nil {
		return "", fmt.Errorf("获取 access_token 请求失败: %w", err)
	}
	defer resp.Body.Close()

	var data struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		ErrCode     int    `json:"errcode"`
		ErrMsg      string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("解析 access_token 响应失败: %w", err)
	}
	if data.AccessToken == "" {
		return "", fmt.Errorf("获取 access_token 失败: %d %s", data.ErrCode, data.ErrMsg)
	}

	expiresIn := data.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 7200
	}
	w.mu.Lock()
	w.tokens[key] = cachedToken{
		token:     data.AccessToken,
		expiresAt: w.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	w.mu.Unlock()
	return data.AccessToken, nil
}

// UploadImage 上传永久图片素材，返回 (media_id, url)
func (w *WeChatClient) UploadImage(appid, secret, localPath string) (string, string, error) {
	token, err := w.AccessToken(appid, secret)
	if err != nil {
		return "", "", err
	}

	f, err := os.ReadFile(localPath)
	if err != nil {
		return "", "", fmt.Errorf("文件不存在: %s", localPath)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("media", filepath.Base(localPath))
	if err != nil {
		return "", "", err
	}
	if _, err := part.Write(f); err != nil {
		return "", "", err
	}
	if err := writer.Close(); err != nil {
		return "", "", err
	}

	uploadURL := fmt.Sprintf("%s/cgi-bin/material/add_material?access_token=%s&type=image", w.BaseURL, token)
	resp, err := w.HTTPClient.Post(uploadURL, writer.FormDataContentType(), &body)
	if err != nil {
		return "", "", fmt.Errorf("上传图片请求失败: %w", err)
	}
	defer resp.Body.Close()

	var data struct {
		MediaID string `json:"media_id"`
		URL     string `json:"url"`
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", "", fmt.Errorf("解析上传图片响应失败: %w", err)
	}
	if data.MediaID == "" {
		return "", "", fmt.Errorf("上传图片失败: %d %s", data.ErrCode, data.ErrMsg)
	}
	return data.MediaID, data.URL, nil
}

// DraftImage 草稿里要发布的一张图：Markdown 中的原始 URL 与下载到本地的路径
type DraftImage struct {
	SourceURL string
	LocalPath string
}

// CreateDraft 上传图片素材 -> 转换正文 -> 创建草稿，返回草稿 media_id。
// 单张图片上传失败只跳过，不中断整篇发布。
func (w *WeChatClient) CreateDraft(appid, secret, projectTitle, summary, markdown string, images []DraftImage) (string, error) {
	token, err := w.AccessToken(appid, secret)
	if err != nil {
		return "", err
	}

	imgMap := make(map[string]string)
	var mediaIDs []string
	for _, img := range images {
		mediaID, remoteURL, err := w.UploadImage(appid, secret, img.LocalPath)
		if err != nil {
			continue
		}
		mediaIDs = append(mediaIDs, mediaID)
		imgMap[img.SourceURL] = remoteURL
	}

	contentHTML := MarkdownToWeChatHTML(markdown, imgMap)

	// 微信标题限制严格，字符/字节双重截断，避免 45003
	title := TruncateTitle(projectTitle)
	digest := TruncateUTF8(strings.TrimSpace(summary), 60)
	if digest == "" {
		digest = "摘要待补充"
	}

	article := map[string]interface{}{
		"title":                 title,
		"author":                "Sky",
		"digest":                digest,
		"content":               contentHTML,
		"need_open_comment":     0,
		"only_fans_can_comment": 0,
	}
	if len(mediaIDs) > 0 {
		article["thumb_media_id"] = mediaIDs[0]
	}

	payload, err := json.Marshal(map[string]interface{}{
		"articles": []interface{}{article},
	})
	if err != nil {
		return "", err
	}

	draftURL := fmt.Sprintf("%s/cgi-bin/draft/add?access_token=%s", w.BaseURL, token)
	resp, err := w.HTTPClient.Post(draftURL, "application/json; charset=utf-8", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("创建草稿请求失败: %w", err)
	}
	defer resp.Body.Close()

	var data struct {
		MediaID string `json:"media_id"`
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("解析创建草稿响应失败: %w", err)
	}
	if data.MediaID == "" {
		return "", fmt.Errorf("创建草稿失败: %d %s", data.ErrCode, data.ErrMsg)
	}
	return data.MediaID, nil
}

var (
	imageRefPattern      = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)
	timestampLinkPattern = regexp.MustCompile(`\[([0-9]{2,}:[0-9]{2})\]\(timestamp\)`)
)

// MarkdownToWeChatHTML 简单 Markdown -> HTML 转换。
// 图片替换为微信素材 URL，时间戳链接只保留文本，按空行切段落。
func MarkdownToWeChatHTML(md string, imgMap map[string]string) string {
	md = imageRefPattern.ReplaceAllStringFunc(md, func(m string) string {
		src := imageRefPattern.FindStringSubmatch(m)[1]
		if mapped, ok := imgMap[src]; ok && mapped != "" {
			src = mapped
		}
		return fmt.Sprintf(`<img src="%s" alt="image" />`, src)
	})
	md = timestampLinkPattern.ReplaceAllString(md, "$1")

	var htmlParts []string
	for _, p := range strings.Split(md, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		htmlParts = append(htmlParts, "<p>"+strings.ReplaceAll(p, "\n", "<br/>")+"</p>")
	}
	return strings.Join(htmlParts, "\n")
}

// TruncateUTF8 按字节上限截断并保证结果仍是合法 UTF-8
func TruncateUTF8(text string, maxBytes int) string {
	if len(text) <= maxBytes {
		return text
	}
	b := []byte(text)[:maxBytes]
	for len(b) > 0 && !utf8.Valid(b) {
		b = b[:len(b)-1]
	}
	return string(b)
}

// TruncateTitle 微信标题收紧规则：去空格 -> 最多 12 字符 -> 最多 30 字节
func TruncateTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "未命名"
	}
	runes := []rune(text)
	if len(runes) > 12 {
		text = string(runes[:12])
	}
	text = TruncateUTF8(text, 30)
	if text == "" {
		return "未命名"
	}
	return text
}
