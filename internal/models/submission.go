package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusGraded    SubmissionStatus = "graded"
	SubmissionStatusReturned  SubmissionStatus = "returned"
)

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusSubmitted, SubmissionStatusGraded, SubmissionStatusReturned:
		return true
	default:
		return false
	}
}

var submissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionStatusSubmitted: {SubmissionStatusGraded, SubmissionStatusReturned},
	SubmissionStatusGraded:    {SubmissionStatusGraded, SubmissionStatusReturned},
}

// CanTransition reports whether a submission may move from one status to another.
// Writing the current status again is always allowed; returned is terminal.
func CanTransition(from, to SubmissionStatus) bool {
	if from == to {
		return true
	}
	for _, next := range submissionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Submission is a student's single response to a task.
type Submission struct {
	ID          uint                            `gorm:"primaryKey" json:"id"`
	TaskID      uint                            `gorm:"not null;uniqueIndex:idx_submission_task_student" json:"task_id"`
	StudentID   uint                            `gorm:"not null;uniqueIndex:idx_submission_task_student;index" json:"student_id"`
	Content     datatypes.JSONSlice[Attachment] `gorm:"type:json" json:"content"`
	SubmittedAt time.Time                       `gorm:"not null;index" json:"submitted_at"`
	IsLate      bool                            `gorm:"not null;default:false" json:"is_late"`
	Status      SubmissionStatus                `gorm:"size:32;not null;index" json:"status"`
	Points      *float64                        `json:"points"`
	Feedback    string                          `gorm:"type:text" json:"feedback"`
	GradedBy    *uint                           `json:"graded_by"`
	GradedAt    *time.Time                      `json:"graded_at"`
	CreatedAt   time.Time                       `json:"created_at"`
	UpdatedAt   time.Time                       `json:"updated_at"`
}

// IsGraded reports whether the submission has a final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}

// IsLateAt is the lateness rule: a submission made after the deadline is late.
func IsLateAt(submittedAt, deadline time.Time) bool {
	return submittedAt.After(deadline)
}
