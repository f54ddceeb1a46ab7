package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/authz"
	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

// GroupService manages student groups and membership lookups.
type GroupService interface {
	Create(ctx context.Context, actor authz.Actor, req dto.GroupCreateRequest) (dto.GroupResponse, error)
	AddMembers(ctx context.Context, actor authz.Actor, groupID uint, req dto.GroupMembersRequest) (dto.GroupResponse, error)
	RemoveMember(ctx context.Context, actor authz.Actor, groupID, studentID uint) (dto.GroupResponse, error)
	List(ctx context.Context, actor authz.Actor) ([]dto.GroupResponse, error)
	StudentGroupIDs(ctx context.Context, studentID uint) ([]uint, error)
	CountStudents(ctx context.Context, groupIDs []uint) (int64, error)
}

type groupService struct {
	repo      repository.GroupRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGroupService constructs the group directory.
func NewGroupService(repo repository.GroupRepository, validate *validator.Validate, logger zerolog.Logger) GroupService {
	return &groupService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "group_service").Logger(),
	}
}

func (s *groupService) Create(ctx context.Context, actor authz.Actor, req dto.GroupCreateRequest) (dto.GroupResponse, error) {
	if !authz.CanAct(actor, authz.ActionGroupCreate, authz.Owners{}) {
		return dto.GroupResponse{}, forbidden("create groups")
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.GroupResponse{}, err
	}
	name, err := requiredText(req.Name, "name")
	if err != nil {
		return dto.GroupResponse{}, err
	}

	group := models.Group{Name: name, OwnerID: actor.ID}
	if err := s.repo.Create(ctx, &group); err != nil {
		return dto.GroupResponse{}, storeError(err, nil)
	}
	if err := s.repo.AddMembers(ctx, group.ID, uniqueIDs(req.StudentIDs)); err != nil {
		return dto.GroupResponse{}, storeError(err, nil)
	}

	s.logger.Info().Uint("group_id", group.ID).Uint("owner_id", actor.ID).Msg("group created")
	return s.load(ctx, group.ID)
}

func (s *groupService) AddMembers(ctx context.Context, actor authz.Actor, groupID uint, req dto.GroupMembersRequest) (dto.GroupResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.GroupResponse{}, err
	}
	if err := s.authorizeManage(ctx, actor, groupID); err != nil {
		return dto.GroupResponse{}, err
	}
	if err := s.repo.AddMembers(ctx, groupID, uniqueIDs(req.StudentIDs)); err != nil {
		return dto.GroupResponse{}, storeError(err, nil)
	}
	return s.load(ctx, groupID)
}

func (s *groupService) RemoveMember(ctx context.Context, actor authz.Actor, groupID, studentID uint) (dto.GroupResponse, error) {
	if err := s.authorizeManage(ctx, actor, groupID); err != nil {
		return dto.GroupResponse{}, err
	}
	if err := s.repo.RemoveMember(ctx, groupID, studentID); err != nil {
		return dto.GroupResponse{}, storeError(err, ErrGroupMemberMissing)
	}
	return s.load(ctx, groupID)
}

func (s *groupService) List(ctx context.Context, actor authz.Actor) ([]dto.GroupResponse, error) {
	var filter repository.GroupFilter
	switch {
	case actor.IsAdmin():
	case actor.IsStudent():
		filter.StudentID = &actor.ID
	case actor.IsGrader():
		filter.OwnerID = &actor.ID
	default:
		return nil, forbidden("list groups")
	}

	groups, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, storeError(err, nil)
	}

	out := make([]dto.GroupResponse, 0, len(groups))
	for _, group := range groups {
		out = append(out, dto.NewGroupResponse(group))
	}
	return out, nil
}

func (s *groupService) StudentGroupIDs(ctx context.Context, studentID uint) ([]uint, error) {
	ids, err := s.repo.GroupIDsForStudent(ctx, studentID)
	if err != nil {
		return nil, storeError(err, nil)
	}
	return ids, nil
}

func (s *groupService) CountStudents(ctx context.Context, groupIDs []uint) (int64, error) {
	total, err := s.repo.CountStudents(ctx, uniqueIDs(groupIDs))
	if err != nil {
		return 0, storeError(err, nil)
	}
	return total, nil
}

func (s *groupService) authorizeManage(ctx context.Context, actor authz.Actor, groupID uint) error {
	group, err := s.repo.GetByID(ctx, groupID)
	if err != nil {
		return storeError(err, ErrGroupNotFound)
	}
	if !authz.CanAct(actor, authz.ActionGroupManage, authz.Owners{Subject: group.OwnerID}) {
		return forbidden("manage this group")
	}
	return nil
}

func (s *groupService) load(ctx context.Context, groupID uint) (dto.GroupResponse, error) {
	group, err := s.repo.GetByID(ctx, groupID)
	if err != nil {
		return dto.GroupResponse{}, storeError(err, ErrGroupNotFound)
	}
	return dto.NewGroupResponse(group), nil
}
