package models

import "time"

// CommentAuthorType snapshots which side of the thread wrote a comment.
type CommentAuthorType string

const (
	CommentAuthorTeacher CommentAuthorType = "teacher"
	CommentAuthorStudent CommentAuthorType = "student"
)

// Comment is a remark attached to a submission.
type Comment struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	SubmissionID uint              `gorm:"not null;index" json:"submission_id"`
	AuthorID     uint              `gorm:"not null;index" json:"author_id"`
	AuthorType   CommentAuthorType `gorm:"size:16;not null" json:"author_type"`
	Content      string            `gorm:"type:text;not null" json:"content"`
	CreatedAt    time.Time         `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// CommentEditWindow bounds how long after creation an author may edit a comment.
const CommentEditWindow = 5 * time.Minute

// EditableAt reports whether the comment is still inside its edit window.
func (c Comment) EditableAt(reference time.Time) bool {
	return reference.Sub(c.CreatedAt) < CommentEditWindow
}
