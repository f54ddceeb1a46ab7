package models

import "time"

// Group is a set of students that tasks are assigned to.
type Group struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"size:255;not null" json:"name"`
	OwnerID   uint          `gorm:"not null;index" json:"owner_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Members   []GroupMember `gorm:"constraint:OnDelete:CASCADE" json:"members"`
}

// GroupMember records a student's membership in a group.
type GroupMember struct {
	GroupID   uint      `gorm:"primaryKey;autoIncrement:false" json:"group_id"`
	StudentID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AllModels lists every persisted model for migrations.
func AllModels() []interface{} {
	return []interface{}{
		&Group{},
		&GroupMember{},
		&Task{},
		&TaskGroup{},
		&Submission{},
		&Comment{},
		&Notification{},
	}
}
