package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

func newFakeWeChat(t *testing.T) (*WeChatClient, *httptest.Server, *int32) {
	t.Helper()
	var tokenCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/cgi-bin/token"):
			n := atomic.AddInt32(&tokenCalls, 1)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "tok-" + r.URL.Query().Get("appid") + "-" + string(rune('0'+n)),
				"expires_in":   7200,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	c := NewWeChatClient()
	c.BaseURL = srv.URL
	return c, srv, &tokenCalls
}

func TestAccessTokenCached(t *testing.T) {
	c, _, calls := newFakeWeChat(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.Now = func() time.Time { return now }

	first, err := c.AccessToken("appid", "secret")
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	second, err := c.AccessToken("appid", "secret")
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if first != second {
		t.Error("有效期内应复用缓存的 token")
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Errorf("token 接口调用次数 = %d, want 1", got)
	}

	// 临近过期（余量 60 秒内）应重新获取
	now = now.Add(7150 * time.Second)
	third, err := c.AccessToken("appid", "secret")
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if third == first {
		t.Error("过期后应获取新 token")
	}
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Errorf("token 接口调用次数 = %d, want 2", got)
	}
}

func TestAccessTokenPerCredentialCache(t *testing.T) {
	c, _, calls := newFakeWeChat(t)

	a, _ := c.AccessToken("app-a", "s")
	b, _ := c.AccessToken("app-b", "s")
	if a == b {
		t.Error("不同 appid 不应共享缓存")
	}
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Errorf("token 接口调用次数 = %d, want 2", got)
	}
}

func TestAccessTokenMissingCredentials(t *testing.T) {
	c := NewWeChatClient()
	if _, err := c.AccessToken("", "secret"); err == nil {
		t.Error("缺少 appid 应报错")
	}
	if _, err := c.AccessToken("appid", ""); err == nil {
		t.Error("缺少 secret 应报错")
	}
}

func TestAccessTokenAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"errcode": 40013, "errmsg": "invalid appid"})
	}))
	defer srv.Close()

	c := NewWeChatClient()
	c.BaseURL = srv.URL
	if _, err := c.AccessToken("bad", "bad"); err == nil || !strings.Contains(err.Error(), "40013") {
		t.Errorf("应返回带 errcode 的错误, got %v", err)
	}
}

func TestMarkdownToWeChatHTML(t *testing.T) {
	md := "## 步骤\n\n### 准备 [00:10](timestamp)\n先准备\n![准备](http://local/1.jpg)\n\n### 执行 [01:10](timestamp)\n再执行\n![执行](http://local/2.jpg)"
	imgMap := map[string]string{"http://local/1.jpg": "http://mmbiz/1"}

	html := MarkdownToWeChatHTML(md, imgMap)

	if !strings.Contains(html, `<img src="http://mmbiz/1" alt="image" />`) {
		t.Error("已上传图片应替换为微信素材 URL")
	}
	if !strings.Contains(html, `<img src="http://local/2.jpg" alt="image" />`) {
		t.Error("未上传的图片应保留原始 URL")
	}
	if strings.Contains(html, "](timestamp)") || !strings.Contains(html, "00:10") {
		t.Error("时间戳链接应只保留文本")
	}
	if !strings.Contains(html, "<p>") || !strings.Contains(html, "<br/>") {
		t.Error("应按空行分段、段内换行转 <br/>")
	}
	if strings.Contains(html, "![") {
		t.Error("不应残留 Markdown 图片语法")
	}
}

func TestMarkdownToWeChatHTMLSkipsEmptyParagraphs(t *testing.T) {
	html := MarkdownToWeChatHTML("a\n\n\n\nb", nil)
	if got := strings.Count(html, "<p>"); got != 2 {
		t.Errorf("段落数 = %d, want 2:\n%s", got, html)
	}
}

func TestTruncateUTF8(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxBytes int
		expected string
	}{
		{"fits", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"ascii cut", "hello world", 5, "hello"},
		{"cjk cut mid rune", "你好世界", 7, "你好"},
		{"cjk cut on boundary", "你好世界", 6, "你好"},
		{"empty", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateUTF8(tt.text, tt.maxBytes)
			if got != tt.expected {
				t.Errorf("TruncateUTF8(%q, %d) = %q, want %q", tt.text, tt.maxBytes, got, tt.expected)
			}
			if !utf8.ValidString(got) {
				t.Errorf("结果不是合法 UTF-8: %q", got)
			}
		})
	}
}

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{"empty", "", "未命名"},
		{"whitespace only", "   ", "未命名"},
		{"short", "教程", "教程"},
		{"twelve runes kept", "一二三四五六七八九十一二", "一二三四五六七八九十"},
		{"long cjk", "一二三四五六七八九十一二三四五", "一二三四五六七八九十"},
		{"long ascii", "a very long english title here", "a very long "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateTitle(tt.text); got != tt.expected {
				t.Errorf("TruncateTitle(%q) = %q, want %q", tt.text, got, tt.expected)
			}
		})
	}
}
