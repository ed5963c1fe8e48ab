package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port      string `yaml:"port"`
		StaticDir string `yaml:"static_dir"`
		VideosDir string `yaml:"videos_dir"`
	} `yaml:"server"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	AI struct {
		GeminiAPIKey   string `yaml:"gemini_api_key"`
		GeminiModel    string `yaml:"gemini_model"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"ai"`
	Media struct {
		FFmpegPath      string `yaml:"ffmpeg_path"`
		FFprobePath     string `yaml:"ffprobe_path"`
		MaxVideoMinutes int    `yaml:"max_video_minutes"`
		Concurrency     int    `yaml:"concurrency"`
	} `yaml:"media"`
	Watermark struct {
		Remove      bool    `yaml:"remove"`
		WidthRatio  float64 `yaml:"width_ratio"`
		HeightRatio float64 `yaml:"height_ratio"`
		XRatio      float64 `yaml:"x_ratio"`
		YRatio      float64 `yaml:"y_ratio"`
		Blur        int     `yaml:"blur"`
	} `yaml:"watermark"`
	MinIO struct {
		Endpoint     string `yaml:"endpoint"`
		AccessKey    string `yaml:"access_key"`
		SecretKey    string `yaml:"secret_key"`
		UseSSL       bool   `yaml:"use_ssl"`
		Domain       string `yaml:"domain"`
		VideosBucket string `yaml:"videos_bucket"`
		ImagesBucket string `yaml:"images_bucket"`
	} `yaml:"minio"`
	WeChat struct {
		AppID  string `yaml:"appid"`
		Secret string `yaml:"secret"`
	} `yaml:"wechat"`
	Invite struct {
		Required bool   `yaml:"required"`
		Code     string `yaml:"code"`
		MaxUses  int    `yaml:"max_uses"`
	} `yaml:"invite"`
}

var AppConfig *Config

func InitConfig() {
	f, err := os.Open("config/config.yaml")
	if err != nil {
		log.Fatalf("配置文件读取失败: %v", err)
	}
	defer f.Close()
	decoder := yaml.NewDecoder(f)
	AppConfig = &Config{}
	if err := decoder.Decode(AppConfig); err != nil {
		log.Fatalf("配置文件解析失败: %v", err)
	}
	applyDefaults(AppConfig)
}

// applyDefaults 为缺省字段填充默认值，保证零配置也能在本地跑通
func applyDefaults(c *Config) {
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "static"
	}
	if c.Server.VideosDir == "" {
		c.Server.VideosDir = "videos"
	}
	if c.AI.GeminiModel == "" {
		c.AI.GeminiModel = "models/gemini-2.5-flash"
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = 300
	}
	if c.Media.FFmpegPath == "" {
		c.Media.FFmpegPath = "ffmpeg"
	}
	if c.Media.FFprobePath == "" {
		c.Media.FFprobePath = "ffprobe"
	}
	if c.Media.MaxVideoMinutes <= 0 {
		c.Media.MaxVideoMinutes = 60
	}
	if c.Media.Concurrency <= 0 {
		c.Media.Concurrency = 3
	}
	if c.Watermark.WidthRatio == 0 {
		c.Watermark.WidthRatio = 0.12
	}
	if c.Watermark.HeightRatio == 0 {
		c.Watermark.HeightRatio = 0.1
	}
	if c.Watermark.XRatio == 0 {
		c.Watermark.XRatio = 0.83
	}
	if c.Watermark.YRatio == 0 {
		c.Watermark.YRatio = 0.85
	}
	if c.Watermark.Blur <= 0 {
		c.Watermark.Blur = 15
	}
	if c.MinIO.VideosBucket == "" {
		c.MinIO.VideosBucket = "videos"
	}
	if c.MinIO.ImagesBucket == "" {
		c.MinIO.ImagesBucket = "images"
	}
	if c.Invite.MaxUses <= 0 {
		c.Invite.MaxUses = 10
	}
}
