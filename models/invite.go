package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInviteInvalid   = errors.New("邀请码无效或已停用")
	ErrInviteExhausted = errors.New("邀请码已用完")
)

type InviteCode struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Code      string    `gorm:"type:varchar(64);uniqueIndex" json:"code"`
	MaxUses   int       `json:"maxUses"`
	UsedCount int       `json:"usedCount"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (InviteCode) TableName() string {
	return "invite_code"
}

// ConsumeInviteCode 校验邀请码并按需扣减次数。
// 读取时加行级排他锁（SELECT ... FOR UPDATE），防止并发请求下超发。
// 若邀请码未入库但等于配置的默认邀请码，则自动落库。
// consume=false 时只做校验不扣减（读取类请求），已用尽的码仍可通过。
func ConsumeInviteCode(db *gorm.DB, code, defaultCode string, defaultMaxUses int, consume bool) (*InviteCode, error) {
	var invite InviteCode
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ? AND active = ?", code, true).
			First(&invite).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if defaultCode == "" || code != defaultCode {
				return ErrInviteInvalid
			}
			invite = InviteCode{
				ID:        uuid.NewString(),
				Code:      code,
				MaxUses:   defaultMaxUses,
				UsedCount: 0,
				Active:    true,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
			if err := tx.Create(&invite).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if invite.UsedCount >= invite.MaxUses {
			if consume {
				return ErrInviteExhausted
			}
			return nil
		}

		if consume {
			invite.UsedCount++
			invite.UpdatedAt = time.Now()
			return tx.Model(&invite).Updates(map[string]interface{}{
				"used_count": invite.UsedCount,
				"updated_at": invite.UpdatedAt,
			}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &invite, nil
}
