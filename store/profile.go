package store

import (
	"time"
)

// Profile is the shared per-user record in the remote store.
type Profile struct {
	Username     string    `gorm:"column:username;primaryKey;type:varchar(100)" json:"username"`
	Points       int       `gorm:"column:points;type:int;not null;default:0" json:"points"`
	Wish         string    `gorm:"column:wish;type:text;not null;default:''" json:"wish"`
	HasVoted     bool      `gorm:"column:has_voted;not null;default:false" json:"hasVoted"`
	HasVotedName bool      `gorm:"column:has_voted_name;not null;default:false" json:"hasVotedName"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updatedAt"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Voted reports the value of the named flag column.
func (p *Profile) Voted(flagField string) bool {
	switch flagField {
	case "has_voted":
		return p.HasVoted
	case "has_voted_name":
		return p.HasVotedName
	default:
		return false
	}
}
