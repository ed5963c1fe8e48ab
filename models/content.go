package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Step AI 提取出的单个关键步骤
type Step struct {
	StepIndex   int    `json:"step_index"`
	Timestamp   int    `json:"timestamp"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImagePath   string `json:"image_path,omitempty"`
}

// AIRawData 生成引擎的结构化输出，原样存入 content.ai_raw_data 以便重新导出
type AIRawData struct {
	Headline string `json:"headline,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Steps    []Step `json:"steps"`
}

// 实现 driver.Valuer 接口: Go Struct -> JSON String (存入数据库)
func (a *AIRawData) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// 实现 sql.Scanner 接口: JSON String -> Go Struct (从数据库读取)
func (a *AIRawData) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
	}
	return json.Unmarshal(bytes, a)
}

// Content 项目的图文产物，与 Project 一对一；上传时即创建占位行，避免前端早期轮询 404
type Content struct {
	ID              string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ProjectID       string     `gorm:"type:varchar(64);uniqueIndex" json:"projectId"`
	AIRawData       *AIRawData `gorm:"type:json" json:"aiRawData"`
	MarkdownContent string     `gorm:"type:longtext" json:"markdownContent"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (Content) TableName() string {
	return "content"
}
