package models

import "time"

// 项目状态常量（贯穿上传、后台处理与轮询接口）
const (
	ProjectStatusPending    = "pending"    // 已上传，等待后台处理
	ProjectStatusProcessing = "processing" // 流水线处理中
	ProjectStatusCompleted  = "completed"  // 图文已生成完毕
	ProjectStatusFailed     = "failed"     // 处理失败，error_msg 给出原因
)

type Project struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title          string    `gorm:"type:varchar(255)" json:"title"`
	InviteCode     string    `gorm:"type:varchar(64);index" json:"inviteCode,omitempty"`
	SourceType     string    `gorm:"type:varchar(50)" json:"sourceType"`
	LocalVideoPath string    `gorm:"type:varchar(512)" json:"localVideoPath"`
	Duration       *int      `json:"duration"`
	Status         string    `gorm:"type:varchar(50)" json:"status"`
	Progress       int       `json:"progress"`
	ErrorMsg       *string   `gorm:"type:text" json:"errorMsg"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (Project) TableName() string {
	return "project"
}
