package types

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID                 uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Username           string     `gorm:"uniqueIndex;not null;column:username" json:"username"`
	Email              string     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Password           string     `gorm:"not null;column:password" json:"-"`
	LetterboxdUsername *string    `gorm:"column:letterboxd_username" json:"letterboxd_username"`
	SyncStatus         SyncStatus `gorm:"not null;default:'PENDING';column:sync_status" json:"sync_status"`
	LastSyncDate       *time.Time `gorm:"column:last_sync_date" json:"last_sync_date"`
	IsActive           bool       `gorm:"not null;default:true;column:is_active" json:"is_active"`
	CreatedAt          time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string {
	return "user"
}
