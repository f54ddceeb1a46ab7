package dto

import (
	"time"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// NotificationResponse represents notification data returned to clients.
type NotificationResponse struct {
	ID            uint      `json:"id"`
	RecipientID   uint      `json:"recipient_id"`
	RecipientRole string    `json:"recipient_role"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	RelatedID     uint      `json:"related_id"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model to DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:            model.ID,
		RecipientID:   model.RecipientID,
		RecipientRole: model.RecipientRole,
		Type:          string(model.Type),
		Title:         model.Title,
		Message:       model.Message,
		RelatedID:     model.RelatedID,
		Read:          model.Read,
		CreatedAt:     model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts a slice to DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewNotificationResponse(item))
	}
	return out
}

// PendingStudentsResponse lists students who have not submitted a task yet.
type PendingStudentsResponse struct {
	TaskID     uint   `json:"task_id"`
	StudentIDs []uint `json:"student_ids"`
}

// DeadlineSweepResponse summarizes a reminder sweep.
type DeadlineSweepResponse struct {
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
	TasksScanned    int       `json:"tasks_scanned"`
	RemindersQueued int       `json:"reminders_queued"`
}
