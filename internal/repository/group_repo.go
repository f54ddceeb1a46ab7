package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// GroupFilter narrows group listings. Nil fields are ignored.
type GroupFilter struct {
	OwnerID   *uint
	StudentID *uint
}

// GroupRepository persists groups and their memberships.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error
	GetByID(ctx context.Context, id uint) (models.Group, error)
	List(ctx context.Context, filter GroupFilter) ([]models.Group, error)
	AddMembers(ctx context.Context, groupID uint, studentIDs []uint) error
	RemoveMember(ctx context.Context, groupID, studentID uint) error
	ExistingIDs(ctx context.Context, groupIDs []uint) ([]uint, error)
	GroupIDsForStudent(ctx context.Context, studentID uint) ([]uint, error)
	StudentIDsInGroups(ctx context.Context, groupIDs []uint) ([]uint, error)
	CountStudents(ctx context.Context, groupIDs []uint) (int64, error)
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository constructs a GORM-backed repository.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *groupRepository) GetByID(ctx context.Context, id uint) (models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).Preload("Members").First(&group, id).Error; err != nil {
		return models.Group{}, err
	}
	return group, nil
}

func (r *groupRepository) List(ctx context.Context, filter GroupFilter) ([]models.Group, error) {
	query := r.db.WithContext(ctx).Model(&models.Group{})
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.StudentID != nil {
		query = query.Where("id IN (?)", r.db.Model(&models.GroupMember{}).Select("group_id").Where("student_id = ?", *filter.StudentID))
	}

	var groups []models.Group
	if err := query.Preload("Members").Order("name ASC").Order("id ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *groupRepository) AddMembers(ctx context.Context, groupID uint, studentIDs []uint) error {
	if len(studentIDs) == 0 {
		return nil
	}
	members := make([]models.GroupMember, 0, len(studentIDs))
	for _, id := range studentIDs {
		members = append(members, models.GroupMember{GroupID: groupID, StudentID: id})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&members).Error
}

func (r *groupRepository) RemoveMember(ctx context.Context, groupID, studentID uint) error {
	result := r.db.WithContext(ctx).
		Where("group_id = ? AND student_id = ?", groupID, studentID).
		Delete(&models.GroupMember{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *groupRepository) ExistingIDs(ctx context.Context, groupIDs []uint) ([]uint, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id IN ?", groupIDs).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *groupRepository) GroupIDsForStudent(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("student_id = ?", studentID).
		Order("group_id ASC").
		Pluck("group_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// StudentIDsInGroups returns each student once even when they belong to several of the groups.
func (r *groupRepository) StudentIDsInGroups(ctx context.Context, groupIDs []uint) ([]uint, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Distinct("student_id").
		Where("group_id IN ?", groupIDs).
		Order("student_id ASC").
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *groupRepository) CountStudents(ctx context.Context, groupIDs []uint) (int64, error) {
	if len(groupIDs) == 0 {
		return 0, nil
	}
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.GroupMember{}).
		Where("group_id IN ?", groupIDs).
		Distinct("student_id").
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
