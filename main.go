package main

import (
	"fmt"

	"video2blog-server/config"
	"video2blog-server/models"
	"video2blog-server/routers"
	"video2blog-server/service"
)

func main() {
	config.InitConfig()
	fmt.Println("Server starting on port", config.AppConfig.Server.Port)
	models.InitDB()
	fmt.Println("Database initialized")

	service.InitMinIO()
	fmt.Println("MinIO initialized")

	cfg := config.AppConfig
	service.DefaultRunner = service.NewRunner(cfg.Media.Concurrency)
	service.DefaultProcessor = &service.Processor{
		Store:           models.NewStore(models.GormDB),
		Media:           service.NewFFmpeg(cfg.Media.FFprobePath, cfg.Media.FFmpegPath),
		Engine:          service.NewEngine(cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel, cfg.AI.TimeoutSeconds),
		OSS:             service.OSS,
		MaxVideoMinutes: cfg.Media.MaxVideoMinutes,
		ImagesBucket:    cfg.MinIO.ImagesBucket,
	}

	r := routers.InitRouter()
	r.Run(cfg.Server.Port)
}
