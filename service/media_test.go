package service

import "testing"

func TestWatermarkRegion(t *testing.T) {
	// 默认配置：右下角 12% x 10% 区域
	opts := WatermarkOptions{WidthRatio: 0.12, HeightRatio: 0.1, XRatio: 0.83, YRatio: 0.85, Blur: 15}

	tests := []struct {
		name          string
		width, height int
		opts          WatermarkOptions
	}{
		{"1080p", 1920, 1080, opts},
		{"720p", 1280, 720, opts},
		{"vertical", 720, 1280, opts},
		{"tiny frame", 16, 16, opts},
		{"ratio overflow", 1920, 1080, WatermarkOptions{WidthRatio: 0.5, HeightRatio: 0.5, XRatio: 0.9, YRatio: 0.9}},
		{"zero ratios", 1920, 1080, WatermarkOptions{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, w, h := watermarkRegion(tt.width, tt.height, tt.opts)
			if w < 4 || h < 4 {
				t.Errorf("区域过小: w=%d h=%d", w, h)
			}
			if x < 0 || y < 0 {
				t.Errorf("起点为负: x=%d y=%d", x, y)
			}
			if tt.width >= w && tt.height >= h {
				if x+w > tt.width || y+h > tt.height {
					t.Errorf("区域越界: x=%d y=%d w=%d h=%d 帧 %dx%d", x, y, w, h, tt.width, tt.height)
				}
			}
		})
	}
}

func TestWatermarkRegionKnownCase(t *testing.T) {
	opts := WatermarkOptions{WidthRatio: 0.12, HeightRatio: 0.1, XRatio: 0.83, YRatio: 0.85}
	x, y, w, h := watermarkRegion(1920, 1080, opts)
	if w != 230 || h != 108 {
		t.Errorf("尺寸 = %dx%d, want 230x108", w, h)
	}
	if x != 1593 || y != 918 {
		t.Errorf("起点 = (%d,%d), want (1593,918)", x, y)
	}
}

func TestBlurFilter(t *testing.T) {
	got := blurFilter(1593, 918, 230, 108, 15)
	want := "split[a][b];[b]crop=230:108:1593:918,boxblur=15[wm];[a][wm]overlay=1593:918"
	if got != want {
		t.Errorf("blurFilter = %q, want %q", got, want)
	}
}

func TestDurationBinaryMissing(t *testing.T) {
	f := NewFFmpeg("/nonexistent/ffprobe", "/nonexistent/ffmpeg")
	if _, err := f.Duration("video.mp4"); err == nil {
		t.Fatal("ffprobe 不存在时应报错")
	} else if _, ok := err.(*MediaProbeError); !ok {
		t.Errorf("错误类型 = %T, want *MediaProbeError", err)
	}
}

func TestCaptureBinaryMissing(t *testing.T) {
	f := NewFFmpeg("/nonexistent/ffprobe", "/nonexistent/ffmpeg")
	if _, err := f.Capture("video.mp4", 10, nil); err == nil {
		t.Fatal("ffmpeg 不存在时应报错")
	} else if _, ok := err.(*MediaCaptureError); !ok {
		t.Errorf("错误类型 = %T, want *MediaCaptureError", err)
	}
}
