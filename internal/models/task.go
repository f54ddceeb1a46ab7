package models

import (
	"time"

	"gorm.io/datatypes"
)

// Task is an assignment a teacher publishes to one or more groups.
type Task struct {
	ID                  uint                            `gorm:"primaryKey" json:"id"`
	Title               string                          `gorm:"size:255;not null" json:"title"`
	Description         string                          `gorm:"type:text;not null" json:"description"`
	TeacherID           uint                            `gorm:"not null;index" json:"teacher_id"`
	Deadline            time.Time                       `gorm:"not null;index" json:"deadline"`
	AllowLateSubmission bool                            `gorm:"not null;default:false" json:"allow_late_submission"`
	MaxPoints           int                             `gorm:"not null;default:0" json:"max_points"`
	Attachments         datatypes.JSONSlice[Attachment] `gorm:"type:json" json:"attachments"`
	CreatedAt           time.Time                       `json:"created_at"`
	UpdatedAt           time.Time                       `json:"updated_at"`
	Groups              []TaskGroup                     `gorm:"constraint:OnDelete:CASCADE" json:"groups"`
}

// TaskGroup links a task to one of its assigned groups.
type TaskGroup struct {
	TaskID  uint `gorm:"primaryKey;autoIncrement:false" json:"task_id"`
	GroupID uint `gorm:"primaryKey;autoIncrement:false;index" json:"group_id"`
}

// GroupIDs returns the assigned group identifiers in stored order.
func (t Task) GroupIDs() []uint {
	ids := make([]uint, 0, len(t.Groups))
	for _, group := range t.Groups {
		ids = append(ids, group.GroupID)
	}
	return ids
}

// IsExpired reports whether the deadline has passed at the reference time.
func (t Task) IsExpired(reference time.Time) bool {
	return reference.After(t.Deadline)
}

// AcceptsSubmissionAt reports whether a submission made at reference is allowed.
func (t Task) AcceptsSubmissionAt(reference time.Time) bool {
	return t.AllowLateSubmission || !t.IsExpired(reference)
}
