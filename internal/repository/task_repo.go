package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// TaskFilter describes task listing options.
type TaskFilter struct {
	GroupIDs  []uint
	TeacherID *uint
	// State is "active" or "expired" relative to Now; empty means both.
	State    string
	Now      time.Time
	Search   string
	Sort     string
	Page     int
	PageSize int
}

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)
	GetByID(ctx context.Context, id uint) (models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task, replaceGroups bool) error
	Delete(ctx context.Context, id uint) error
	DeleteAll(ctx context.Context) (int64, error)
	ListDueBetween(ctx context.Context, start, end time.Time) ([]models.Task, error)
	CountSubmissions(ctx context.Context, taskIDs []uint) (map[uint]int64, error)
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository instantiates a GORM-backed repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Task{})

	if len(filter.GroupIDs) > 0 {
		query = query.Where("id IN (?)", r.db.Model(&models.TaskGroup{}).Select("task_id").Where("group_id IN ?", filter.GroupIDs))
	}

	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}

	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}
	switch filter.State {
	case "active":
		query = query.Where("deadline >= ?", now)
	case "expired":
		query = query.Where("deadline < ?", now)
	}

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(title) LIKE ?", pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = paginate(query.Order(normalizeTaskSort(filter.Sort)).Order("id ASC"), filter.Page, filter.PageSize)

	var tasks []models.Task
	if err := query.Preload("Groups").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uint) (models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).Preload("Groups").First(&task, id).Error; err != nil {
		return models.Task{}, err
	}

	return task, nil
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task, replaceGroups bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Groups").Save(task).Error; err != nil {
			return err
		}
		if !replaceGroups {
			return nil
		}
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.TaskGroup{}).Error; err != nil {
			return err
		}
		for i := range task.Groups {
			task.Groups[i].TaskID = task.ID
		}
		if len(task.Groups) == 0 {
			return nil
		}
		return tx.Create(&task.Groups).Error
	})
}

// Delete removes the task together with its submissions and their comments.
func (r *taskRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submissionIDs := tx.Model(&models.Submission{}).Select("id").Where("task_id = ?", id)
		if err := tx.Where("submission_id IN (?)", submissionIDs).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", id).Delete(&models.TaskGroup{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Task{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *taskRepository) DeleteAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&models.TaskGroup{}).Error; err != nil {
			return err
		}
		result := tx.Where("1 = 1").Delete(&models.Task{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	return deleted, err
}

func (r *taskRepository) ListDueBetween(ctx context.Context, start, end time.Time) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).
		Preload("Groups").
		Where("deadline >= ? AND deadline < ?", start, end).
		Order("deadline ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) CountSubmissions(ctx context.Context, taskIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(taskIDs))
	if len(taskIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		TaskID uint
		Total  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Select("task_id, COUNT(*) AS total").
		Where("task_id IN ?", taskIDs).
		Group("task_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.TaskID] = row.Total
	}
	return counts, nil
}

func normalizeTaskSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "deadline", "deadline:asc", "deadline.asc":
		return "deadline ASC"
	case "-deadline", "deadline:desc", "deadline.desc":
		return "deadline DESC"
	case "title", "title:asc", "title.asc":
		return "title ASC"
	case "-title", "title:desc", "title.desc":
		return "title DESC"
	case "created_at", "created_at:asc", "created_at.asc":
		return "created_at ASC"
	default:
		return "created_at DESC"
	}
}
