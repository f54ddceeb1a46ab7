package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// AuthoredComment is a comment joined with the task it belongs to.
type AuthoredComment struct {
	models.Comment
	TaskID    uint
	TaskTitle string
}

// CommentStatsFilter scopes comment counters.
type CommentStatsFilter struct {
	TaskID       *uint
	SubmissionID *uint
	// TeacherID scopes counters to tasks owned by the teacher.
	TeacherID *uint
}

// CommentStats aggregates comment counters by author type.
type CommentStats struct {
	Total   int64
	Teacher int64
	Student int64
}

// CommentRepository persists submission comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (models.Comment, error)
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.Comment, error)
	ListByAuthor(ctx context.Context, authorID uint, page, pageSize int) ([]AuthoredComment, int64, error)
	UpdateContent(ctx context.Context, id uint, content string, updatedAt time.Time) error
	Delete(ctx context.Context, id uint) error
	Stats(ctx context.Context, filter CommentStatsFilter) (CommentStats, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository constructs a GORM-backed repository.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return models.Comment{}, err
	}
	return comment, nil
}

func (r *commentRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.Comment, error) {
	var comments []models.Comment
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) ListByAuthor(ctx context.Context, authorID uint, page, pageSize int) ([]AuthoredComment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("author_id = ?", authorID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).
		Table("comments").
		Select("comments.*, tasks.id AS task_id, tasks.title AS task_title").
		Joins("JOIN submissions ON submissions.id = comments.submission_id").
		Joins("JOIN tasks ON tasks.id = submissions.task_id").
		Where("comments.author_id = ?", authorID).
		Order("comments.created_at DESC").
		Order("comments.id DESC")

	var rows []AuthoredComment
	if err := paginate(query, page, pageSize).Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string, updatedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"content": content, "updated_at": updatedAt})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *commentRepository) Stats(ctx context.Context, filter CommentStatsFilter) (CommentStats, error) {
	query := r.db.WithContext(ctx).
		Table("comments").
		Joins("JOIN submissions ON submissions.id = comments.submission_id")

	if filter.SubmissionID != nil {
		query = query.Where("comments.submission_id = ?", *filter.SubmissionID)
	}
	if filter.TaskID != nil {
		query = query.Where("submissions.task_id = ?", *filter.TaskID)
	}
	if filter.TeacherID != nil {
		query = query.Joins("JOIN tasks ON tasks.id = submissions.task_id").Where("tasks.teacher_id = ?", *filter.TeacherID)
	}

	var stats CommentStats
	err := query.Select(`
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN comments.author_type = ? THEN 1 ELSE 0 END), 0) AS teacher,
		COALESCE(SUM(CASE WHEN comments.author_type = ? THEN 1 ELSE 0 END), 0) AS student`,
		models.CommentAuthorTeacher,
		models.CommentAuthorStudent,
	).Scan(&stats).Error
	if err != nil {
		return CommentStats{}, err
	}
	return stats, nil
}
