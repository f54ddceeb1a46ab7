package dto

import (
	"time"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// AttachmentInput is an inline attachment declaration (text or link).
type AttachmentInput struct {
	Type    string `json:"type" form:"type" validate:"max=16"`
	Content string `json:"content" form:"content" validate:"max=10000"`
}

// TaskCreateRequest describes the payload for publishing a task.
type TaskCreateRequest struct {
	Title               string            `json:"title" validate:"required,max=255"`
	Description         string            `json:"description" validate:"required"`
	AssignedGroups      []uint            `json:"assigned_groups" validate:"required,min=1,dive,gt=0"`
	Deadline            string            `json:"deadline" validate:"required"`
	AllowLateSubmission bool              `json:"allow_late_submission"`
	MaxPoints           int               `json:"max_points" validate:"gte=0"`
	Attachments         []AttachmentInput `json:"attachments" validate:"omitempty,dive"`
}

// TaskUpdateRequest carries a partial task patch; nil fields stay untouched.
type TaskUpdateRequest struct {
	Title               *string            `json:"title" validate:"omitempty,max=255"`
	Description         *string            `json:"description"`
	AssignedGroups      *[]uint            `json:"assigned_groups" validate:"omitempty,min=1,dive,gt=0"`
	Deadline            *string            `json:"deadline"`
	AllowLateSubmission *bool              `json:"allow_late_submission"`
	MaxPoints           *int               `json:"max_points" validate:"omitempty,gte=0"`
	Attachments         *[]AttachmentInput `json:"attachments" validate:"omitempty,dive"`
}

// TaskListRequest filters task listings.
type TaskListRequest struct {
	GroupID   *uint  `query:"group_id"`
	TeacherID *uint  `query:"teacher_id"`
	State     string `query:"state" validate:"omitempty,oneof=active expired"`
	Search    string `query:"search" validate:"max=255"`
	Sort      string `query:"sort"`
	Page      int    `query:"page" validate:"gte=0"`
	PageSize  int    `query:"page_size" validate:"gte=0,lte=100"`
}

// TaskResponse is the serialized task enriched with per-call counts.
type TaskResponse struct {
	ID                  uint                `json:"id"`
	Title               string              `json:"title"`
	Description         string              `json:"description"`
	TeacherID           uint                `json:"teacher_id"`
	AssignedGroups      []uint              `json:"assigned_groups"`
	Deadline            time.Time           `json:"deadline"`
	AllowLateSubmission bool                `json:"allow_late_submission"`
	MaxPoints           int                 `json:"max_points"`
	Attachments         []models.Attachment `json:"attachments"`
	SubmissionCount     int64               `json:"submission_count"`
	TotalStudents       int64               `json:"total_students"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// TaskListResponse wraps a page of tasks.
type TaskListResponse struct {
	Items      []TaskResponse `json:"items"`
	Pagination PaginationMeta `json:"pagination"`
}

// NewTaskResponse converts a model into a DTO without counts.
func NewTaskResponse(model models.Task) TaskResponse {
	attachments := make([]models.Attachment, 0, len(model.Attachments))
	attachments = append(attachments, model.Attachments...)

	return TaskResponse{
		ID:                  model.ID,
		Title:               model.Title,
		Description:         model.Description,
		TeacherID:           model.TeacherID,
		AssignedGroups:      model.GroupIDs(),
		Deadline:            model.Deadline,
		AllowLateSubmission: model.AllowLateSubmission,
		MaxPoints:           model.MaxPoints,
		Attachments:         attachments,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}
}

// StudentTaskListRequest filters the student-scoped task view.
type StudentTaskListRequest struct {
	GroupIDs []uint `validate:"omitempty,dive,gt=0"`
	Status   string `validate:"omitempty,oneof=pending submitted graded returned"`
}

// StudentTaskResponse is a task annotated with the caller's submission state.
type StudentTaskResponse struct {
	TaskResponse
	HasSubmitted     bool    `json:"has_submitted"`
	SubmissionID     *uint   `json:"submission_id"`
	SubmissionStatus *string `json:"submission_status"`
	IsExpired        bool    `json:"is_expired"`
	CanSubmit        bool    `json:"can_submit"`
}
