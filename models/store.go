package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store 基于 GORM 的持久化入口。
// 后台流水线只依赖其中的部分方法（按 service.ProjectStore 接口消费），
// 状态/进度/错误通过 map 做部分更新，避免覆盖无关字段。
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateProject(p *Project) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	return s.DB.Create(p).Error
}

func (s *Store) GetProject(id string) (*Project, error) {
	var p Project
	if err := s.DB.First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProjects(inviteCode string) ([]Project, error) {
	var projects []Project
	q := s.DB.Order("created_at DESC")
	if inviteCode != "" {
		q = q.Where("invite_code = ?", inviteCode)
	}
	if err := q.Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// UpdateProject 部分更新项目字段，每次提交立即可见，供轮询端读取
func (s *Store) UpdateProject(id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return s.DB.Model(&Project{}).Where("id = ?", id).Updates(fields).Error
}

func (s *Store) GetContentByProjectID(projectID string) (*Content, error) {
	var c Content
	if err := s.DB.First(&c, "project_id = ?", projectID).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// EnsureContent 获取项目内容，不存在时创建占位行
func (s *Store) EnsureContent(projectID string) (*Content, error) {
	c, err := s.GetContentByProjectID(projectID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	placeholder := &Content{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UpdatedAt: time.Now(),
	}
	if err := s.DB.Create(placeholder).Error; err != nil {
		return nil, err
	}
	return placeholder, nil
}

// UpsertContent 写入生成结果（原始 JSON + 渲染后 Markdown），占位行存在则更新
func (s *Store) UpsertContent(projectID string, raw *AIRawData, markdown string) error {
	c, err := s.GetContentByProjectID(projectID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.DB.Create(&Content{
			ID:              uuid.NewString(),
			ProjectID:       projectID,
			AIRawData:       raw,
			MarkdownContent: markdown,
			UpdatedAt:       time.Now(),
		}).Error
	}
	if err != nil {
		return err
	}
	return s.DB.Model(c).Updates(map[string]interface{}{
		"ai_raw_data":      raw,
		"markdown_content": markdown,
		"updated_at":       time.Now(),
	}).Error
}

// UpdateContentMarkdown 人工编辑 Markdown（流水线完成后不再触碰该行）
func (s *Store) UpdateContentMarkdown(projectID, markdown string) error {
	res := s.DB.Model(&Content{}).Where("project_id = ?", projectID).Updates(map[string]interface{}{
		"markdown_content": markdown,
		"updated_at":       time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return res.Error
}
