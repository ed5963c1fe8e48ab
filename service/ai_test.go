package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSyntheticProperties(t *testing.T) {
	e := NewEngine("", "models/gemini-2.5-flash", 300)
	durations := []int{0, 1, 9, 50, 130, 600, 1200, 3600, 7200}

	for _, d := range durations {
		t.Run(fmt.Sprintf("duration_%d", d), func(t *testing.T) {
			data := e.Synthetic(d)
			if len(data.Steps) < 4 || len(data.Steps) > 8 {
				t.Fatalf("步骤数 = %d, 期望 [4,8]", len(data.Steps))
			}
			prev := -1
			for i, step := range data.Steps {
				if step.StepIndex != i+1 {
					t.Errorf("step_index = %d, want %d", step.StepIndex, i+1)
				}
				if step.Timestamp < prev {
					t.Errorf("时间戳递减: %d 在 %d 之后", step.Timestamp, prev)
				}
				prev = step.Timestamp
				if d <= 1 {
					if step.Timestamp != 0 {
						t.Errorf("时长 %d 时时间戳应为 0, got %d", d, step.Timestamp)
					}
				} else if step.Timestamp >= d {
					t.Errorf("时间戳 %d 超出时长 %d", step.Timestamp, d)
				}
				if step.Title == "" || step.Description == "" {
					t.Error("占位步骤缺少标题或描述")
				}
			}
			if data.Summary == "" {
				t.Error("占位结果缺少摘要")
			}
		})
	}
}

func TestSyntheticDeterministic(t *testing.T) {
	e := NewEngine("", "models/gemini-2.5-flash", 300)
	if !reflect.DeepEqual(e.Synthetic(130), e.Synthetic(130)) {
		t.Error("占位生成不是确定性的")
	}
}

func TestGenerateWithoutKeyUsesSynthetic(t *testing.T) {
	e := NewEngine("", "models/gemini-2.5-flash", 300)
	data, err := e.Generate("/nonexistent.mp4", 130)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !reflect.DeepEqual(data, e.Synthetic(130)) {
		t.Error("无 API Key 时应返回占位结果")
	}
}

// 构造一个假的 Gemini 服务端，按模型名定制 generateContent 行为
func newFakeGemini(t *testing.T, handle func(model string, w http.ResponseWriter)) (*httptest.Server, *int32) {
	t.Helper()
	var generateCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/upload/v1beta/files"):
			json.NewEncoder(w).Encode(map[string]interface{}{
				"file": map[string]interface{}{
					"name":     "files/test",
					"uri":      "https://files/test",
					"state":    "ACTIVE",
					"mimeType": "video/mp4",
				},
			})
		case strings.Contains(r.URL.Path, ":generateContent"):
			atomic.AddInt32(&generateCalls, 1)
			model := strings.TrimPrefix(strings.TrimSuffix(r.URL.Path, ":generateContent"), "/v1beta/")
			handle(model, w)
		default:
			http.NotFound(w, r)
		}
	}))
	return srv, &generateCalls
}

func writeGenerateResponse(w http.ResponseWriter, payload string) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{
				"parts": []map[string]interface{}{{"text": payload}},
			}},
		},
	})
}

func tempVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(path, []byte("fake video bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGenerateFallsBackOnModelNotFound(t *testing.T) {
	payload := `{"headline":"H","summary":"S","steps":[
		{"step_index":1,"timestamp":10,"title":"a","description":"d"},
		{"step_index":2,"timestamp":20,"title":"b","description":"d"},
		{"step_index":3,"timestamp":30,"title":"c","description":"d"},
		{"step_index":4,"timestamp":40,"title":"e","description":"d"}]}`

	srv, calls := newFakeGemini(t, func(model string, w http.ResponseWriter) {
		if model == "models/gemini-2.5-flash" {
			http.Error(w, "model not found", http.StatusNotFound)
			return
		}
		writeGenerateResponse(w, payload)
	})
	defer srv.Close()

	e := NewEngine("test-key", "models/gemini-2.5-flash", 5)
	e.BaseURL = srv.URL
	e.PollInterval = 10 * time.Millisecond

	data, err := e.Generate(tempVideo(t), 130)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if data.Headline != "H" || len(data.Steps) != 4 {
		t.Errorf("应使用第二个候选模型的结果, got %+v", data)
	}
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Errorf("generateContent 调用次数 = %d, want 2", got)
	}
}

func TestGenerateAbortsChainOnOtherFailure(t *testing.T) {
	srv, calls := newFakeGemini(t, func(model string, w http.ResponseWriter) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	defer srv.Close()

	e := NewEngine("test-key", "models/gemini-2.5-flash", 5)
	e.BaseURL = srv.URL
	e.PollInterval = 10 * time.Millisecond

	data, err := e.Generate(tempVideo(t), 130)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	// 非 NotFound 失败后不再尝试后续候选，直接降级为占位结果
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Errorf("generateContent 调用次数 = %d, want 1", got)
	}
	if !reflect.DeepEqual(data, e.Synthetic(130)) {
		t.Error("失败后应返回占位结果")
	}
}

func TestGenerateFallsBackOnMalformedJSON(t *testing.T) {
	srv, calls := newFakeGemini(t, func(model string, w http.ResponseWriter) {
		writeGenerateResponse(w, "这不是 JSON")
	})
	defer srv.Close()

	e := NewEngine("test-key", "models/gemini-2.5-flash", 5)
	e.BaseURL = srv.URL
	e.PollInterval = 10 * time.Millisecond

	data, err := e.Generate(tempVideo(t), 260)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Errorf("generateContent 调用次数 = %d, want 1", got)
	}
	if !reflect.DeepEqual(data, e.Synthetic(260)) {
		t.Error("解析失败应降级为占位结果")
	}
}

func TestModelCandidatesConfiguredFirst(t *testing.T) {
	e := NewEngine("k", "models/custom-model", 300)
	candidates := e.modelCandidates()
	if candidates[0] != "models/custom-model" {
		t.Errorf("配置的模型应排第一, got %v", candidates)
	}
	if len(candidates) != len(fallbackModels)+1 {
		t.Errorf("候选数量 = %d, want %d", len(candidates), len(fallbackModels)+1)
	}

	e = NewEngine("k", "models/gemini-2.0-flash", 300)
	candidates = e.modelCandidates()
	for i, m := range candidates {
		for j := i + 1; j < len(candidates); j++ {
			if m == candidates[j] {
				t.Errorf("候选列表出现重复模型 %s", m)
			}
		}
	}
}
