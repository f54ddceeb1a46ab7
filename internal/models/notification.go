package models

import "time"

// NotificationType enumerates lifecycle notifications.
type NotificationType string

const (
	NotificationTaskAssigned       NotificationType = "task_assigned"
	NotificationSubmissionReceived NotificationType = "submission_received"
	NotificationTaskGraded         NotificationType = "task_graded"
	NotificationDeadlineReminder   NotificationType = "deadline_reminder"
)

// Notification is a message addressed to a single recipient.
type Notification struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	RecipientID   uint             `gorm:"not null;index" json:"recipient_id"`
	RecipientRole string           `gorm:"size:32;not null" json:"recipient_role"`
	Type          NotificationType `gorm:"size:64;not null" json:"type"`
	Title         string           `gorm:"size:255;not null" json:"title"`
	Message       string           `gorm:"type:text" json:"message"`
	RelatedID     uint             `gorm:"index" json:"related_id"`
	Read          bool             `gorm:"not null;default:false" json:"read"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
