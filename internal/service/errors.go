package service

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/apperror"
)

var (
	ErrTaskNotFound       = apperror.NotFound("task not found")
	ErrSubmissionNotFound = apperror.NotFound("submission not found")
	ErrCommentNotFound    = apperror.NotFound("comment not found")
	ErrGroupNotFound      = apperror.NotFound("group not found")
	ErrGroupMemberMissing = apperror.NotFound("student is not a member of the group")

	ErrSubmissionExists      = apperror.Conflict("submission already exists for this task")
	ErrSubmissionsClosed     = apperror.Forbidden("submissions closed")
	ErrSubmissionLocked      = apperror.Forbidden("submission can no longer be edited")
	ErrInvalidTransition     = apperror.Validation("invalid status transition")
	ErrPointsOutOfRange      = apperror.Validation("points must be between 0 and the task maximum")
	ErrPointsRequired        = apperror.Validation("points are required to grade a submission")
	ErrGradeNeedsStatus      = apperror.Validation("points and feedback require a graded or returned status")
	ErrEmptySubmission       = apperror.Validation("submission must contain at least one attachment")
	ErrEmptyPatch            = apperror.Validation("no permitted fields to update")
	ErrCommentWindowExpired  = apperror.Forbidden("comment can only be edited within 5 minutes")
	ErrInvalidDeadline       = apperror.Validation("deadline must be an RFC3339 timestamp")
	ErrAssignedGroupsMissing = apperror.Validation("assigned groups must not be empty")
	ErrUnknownGroups         = apperror.Validation("assigned groups do not exist")
)

// forbidden reports an authorization denial for the named operation.
func forbidden(operation string) error {
	return apperror.Forbidden("not allowed to " + operation)
}

// storeError maps repository failures onto domain errors.
func storeError(err error, notFound *apperror.Error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.Internal(err)
}

func requiredText(value, field string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", apperror.Validation(field + " is required")
	}
	return trimmed, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
