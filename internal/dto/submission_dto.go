package dto

import (
	"time"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// SubmissionCreateRequest describes a student's submission payload.
// Link is shorthand for a single link attachment.
type SubmissionCreateRequest struct {
	TaskID      uint              `json:"task_id" form:"task_id" validate:"required,gt=0"`
	Link        string            `json:"link" form:"link" validate:"omitempty,url,max=2048"`
	Attachments []AttachmentInput `json:"attachments" validate:"omitempty,dive"`
}

// SubmissionUpdateRequest is a role-filtered patch: students may change content,
// grading authorities may change points, feedback and status.
type SubmissionUpdateRequest struct {
	Link        *string            `json:"link" validate:"omitempty,url,max=2048"`
	Attachments *[]AttachmentInput `json:"attachments" validate:"omitempty,dive"`
	Points      *float64           `json:"points" validate:"omitempty,gte=0"`
	Feedback    *string            `json:"feedback" validate:"omitempty,max=5000"`
	Status      *string            `json:"status" validate:"omitempty,oneof=submitted graded returned"`
}

// SubmissionGradeRequest grades a submission.
type SubmissionGradeRequest struct {
	Points   *float64 `json:"points" validate:"required,gte=0"`
	Feedback *string  `json:"feedback" validate:"omitempty,max=5000"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	TaskID    *uint   `query:"task_id"`
	StudentID *uint   `query:"student_id"`
	Status    *string `query:"status" validate:"omitempty,oneof=submitted graded returned"`
	Page      int     `query:"page" validate:"gte=0"`
	PageSize  int     `query:"page_size" validate:"gte=0,lte=100"`
}

// TaskLite summarizes the parent task in submission responses.
type TaskLite struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	Deadline  time.Time `json:"deadline"`
	MaxPoints int       `json:"max_points"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID          uint                `json:"id"`
	TaskID      uint                `json:"task_id"`
	StudentID   uint                `json:"student_id"`
	Content     []models.Attachment `json:"content"`
	SubmittedAt time.Time           `json:"submitted_at"`
	IsLate      bool                `json:"is_late"`
	Status      string              `json:"status"`
	Points      *float64            `json:"points"`
	Feedback    string              `json:"feedback"`
	GradedBy    *uint               `json:"graded_by"`
	GradedAt    *time.Time          `json:"graded_at"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Task        *TaskLite           `json:"task,omitempty"`
}

// SubmissionListResponse wraps a page of submissions.
type SubmissionListResponse struct {
	Items      []SubmissionResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	content := make([]models.Attachment, 0, len(model.Content))
	content = append(content, model.Content...)

	return SubmissionResponse{
		ID:          model.ID,
		TaskID:      model.TaskID,
		StudentID:   model.StudentID,
		Content:     content,
		SubmittedAt: model.SubmittedAt,
		IsLate:      model.IsLate,
		Status:      string(model.Status),
		Points:      model.Points,
		Feedback:    model.Feedback,
		GradedBy:    model.GradedBy,
		GradedAt:    model.GradedAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// WithTask attaches a task summary to the response.
func (r SubmissionResponse) WithTask(task models.Task) SubmissionResponse {
	if task.ID == 0 {
		return r
	}
	r.Task = &TaskLite{
		ID:        task.ID,
		Title:     task.Title,
		Deadline:  task.Deadline,
		MaxPoints: task.MaxPoints,
	}
	return r
}

// SubmissionStatsRequest scopes submission statistics.
type SubmissionStatsRequest struct {
	TaskID *uint `query:"task_id"`
}

// SubmissionStatsResponse aggregates submission counts and point statistics.
type SubmissionStatsResponse struct {
	Total         int64    `json:"total"`
	Submitted     int64    `json:"submitted"`
	Graded        int64    `json:"graded"`
	Returned      int64    `json:"returned"`
	Late          int64    `json:"late"`
	AveragePoints *float64 `json:"average_points"`
	MinPoints     *float64 `json:"min_points"`
	MaxPoints     *float64 `json:"max_points"`
}
