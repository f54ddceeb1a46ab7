package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// SubmissionFilter allows narrowing submission queries.
type SubmissionFilter struct {
	TaskID    *uint
	StudentID *uint
	Status    *string
	// TeacherID scopes results to tasks owned by the teacher.
	TeacherID *uint
	Page      int
	PageSize  int
}

// SubmissionStats aggregates submission counters.
type SubmissionStats struct {
	Total         int64
	Submitted     int64
	Graded        int64
	Returned      int64
	Late          int64
	AveragePoints *float64
	MinPoints     *float64
	MaxPoints     *float64
}

// SubmissionRepository defines data operations for submissions.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, int64, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	GetByTaskAndStudent(ctx context.Context, taskID, studentID uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Update(ctx context.Context, submission *models.Submission) error
	Delete(ctx context.Context, id uint) error
	Stats(ctx context.Context, filter SubmissionFilter) (SubmissionStats, error)
	ListByStudentForTasks(ctx context.Context, studentID uint, taskIDs []uint) (map[uint]models.Submission, error)
	StudentIDsForTask(ctx context.Context, taskID uint) ([]uint, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) filtered(ctx context.Context, filter SubmissionFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Submission{})

	if filter.TaskID != nil {
		query = query.Where("submissions.task_id = ?", *filter.TaskID)
	}

	if filter.StudentID != nil {
		query = query.Where("submissions.student_id = ?", *filter.StudentID)
	}

	if filter.Status != nil {
		query = query.Where("submissions.status = ?", *filter.Status)
	}

	if filter.TeacherID != nil {
		query = query.Where("submissions.task_id IN (?)", r.db.Model(&models.Task{}).Select("id").Where("teacher_id = ?", *filter.TeacherID))
	}

	return query
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, int64, error) {
	query := r.filtered(ctx, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var submissions []models.Submission
	if err := paginate(query.Order("submitted_at DESC").Order("id DESC"), filter.Page, filter.PageSize).
		Find(&submissions).Error; err != nil {
		return nil, 0, err
	}

	return submissions, total, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) GetByTaskAndStudent(ctx context.Context, taskID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Where("student_id = ?", studentID).
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// Create persists the submission. A second submission for the same task and
// student is rejected by idx_submission_task_student and reported as ErrDuplicate.
func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if err := r.db.WithContext(ctx).Create(submission).Error; err != nil {
		if isDuplicateKey(err) {
			return errors.Join(ErrDuplicate, err)
		}
		return err
	}
	return nil
}

func (r *submissionRepository) Update(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

func (r *submissionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Submission{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *submissionRepository) Stats(ctx context.Context, filter SubmissionFilter) (SubmissionStats, error) {
	var row struct {
		Total     int64
		Submitted int64
		Graded    int64
		Returned  int64
		Late      int64
		Average   *float64
		Minimum   *float64
		Maximum   *float64
	}

	err := r.filtered(ctx, filter).Select(`
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN submissions.status = ? THEN 1 ELSE 0 END), 0) AS submitted,
		COALESCE(SUM(CASE WHEN submissions.status = ? THEN 1 ELSE 0 END), 0) AS graded,
		COALESCE(SUM(CASE WHEN submissions.status = ? THEN 1 ELSE 0 END), 0) AS returned,
		COALESCE(SUM(CASE WHEN submissions.is_late THEN 1 ELSE 0 END), 0) AS late,
		AVG(CASE WHEN submissions.status = ? THEN submissions.points END) AS average,
		MIN(CASE WHEN submissions.status = ? THEN submissions.points END) AS minimum,
		MAX(CASE WHEN submissions.status = ? THEN submissions.points END) AS maximum`,
		models.SubmissionStatusSubmitted,
		models.SubmissionStatusGraded,
		models.SubmissionStatusReturned,
		models.SubmissionStatusGraded,
		models.SubmissionStatusGraded,
		models.SubmissionStatusGraded,
	).Scan(&row).Error
	if err != nil {
		return SubmissionStats{}, err
	}

	return SubmissionStats{
		Total:         row.Total,
		Submitted:     row.Submitted,
		Graded:        row.Graded,
		Returned:      row.Returned,
		Late:          row.Late,
		AveragePoints: row.Average,
		MinPoints:     row.Minimum,
		MaxPoints:     row.Maximum,
	}, nil
}

func (r *submissionRepository) ListByStudentForTasks(ctx context.Context, studentID uint, taskIDs []uint) (map[uint]models.Submission, error) {
	result := make(map[uint]models.Submission, len(taskIDs))
	if len(taskIDs) == 0 {
		return result, nil
	}

	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND task_id IN ?", studentID, taskIDs).
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	for _, submission := range submissions {
		result[submission.TaskID] = submission
	}
	return result, nil
}

func (r *submissionRepository) StudentIDsForTask(ctx context.Context, taskID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("task_id = ?", taskID).
		Distinct().
		Order("student_id ASC").
		Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
