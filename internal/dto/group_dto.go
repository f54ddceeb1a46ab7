package dto

import (
	"time"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// GroupCreateRequest creates a student group.
type GroupCreateRequest struct {
	Name       string `json:"name" validate:"required,max=255"`
	StudentIDs []uint `json:"student_ids" validate:"omitempty,dive,gt=0"`
}

// GroupMembersRequest adds students to a group.
type GroupMembersRequest struct {
	StudentIDs []uint `json:"student_ids" validate:"required,min=1,dive,gt=0"`
}

// GroupResponse is the serialized group.
type GroupResponse struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	OwnerID    uint      `json:"owner_id"`
	StudentIDs []uint    `json:"student_ids"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewGroupResponse converts a group with loaded members into a DTO.
func NewGroupResponse(model models.Group) GroupResponse {
	ids := make([]uint, 0, len(model.Members))
	for _, member := range model.Members {
		ids = append(ids, member.StudentID)
	}
	return GroupResponse{
		ID:         model.ID,
		Name:       model.Name,
		OwnerID:    model.OwnerID,
		StudentIDs: ids,
		CreatedAt:  model.CreatedAt,
	}
}
