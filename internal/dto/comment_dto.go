package dto

import (
	"time"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// CommentCreateRequest is the payload to comment on a submission.
type CommentCreateRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// CommentUpdateRequest replaces a comment's content.
type CommentUpdateRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

// CommentResponse represents a comment in a submission thread.
type CommentResponse struct {
	ID           uint      `json:"id"`
	SubmissionID uint      `json:"submission_id"`
	AuthorID     uint      `json:"author_id"`
	AuthorType   string    `json:"author_type"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewCommentResponse converts a comment model into a DTO.
func NewCommentResponse(model models.Comment) CommentResponse {
	return CommentResponse{
		ID:           model.ID,
		SubmissionID: model.SubmissionID,
		AuthorID:     model.AuthorID,
		AuthorType:   string(model.AuthorType),
		Content:      model.Content,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

// NewCommentResponseSlice converts comments into DTOs.
func NewCommentResponseSlice(items []models.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewCommentResponse(item))
	}
	return out
}

// AuthoredCommentResponse is a comment in the author's own feed.
type AuthoredCommentResponse struct {
	CommentResponse
	TaskID    uint   `json:"task_id"`
	TaskTitle string `json:"task_title"`
}

// AuthoredCommentListResponse wraps a page of the author's comments.
type AuthoredCommentListResponse struct {
	Items      []AuthoredCommentResponse `json:"items"`
	Pagination PaginationMeta            `json:"pagination"`
}

// CommentStatsRequest scopes comment statistics.
type CommentStatsRequest struct {
	TaskID       *uint `query:"task_id"`
	SubmissionID *uint `query:"submission_id"`
}

// CommentStatsResponse aggregates comment counts per author side.
type CommentStatsResponse struct {
	Total   int64 `json:"total"`
	Teacher int64 `json:"teacher"`
	Student int64 `json:"student"`
}
