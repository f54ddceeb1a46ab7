package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedGroup(t *testing.T, repo GroupRepository, owner uint, students ...uint) models.Group {
	t.Helper()
	group := models.Group{Name: fmt.Sprintf("group-%d-%d", owner, len(students)), OwnerID: owner}
	require.NoError(t, repo.Create(context.Background(), &group))
	require.NoError(t, repo.AddMembers(context.Background(), group.ID, students))
	return group
}

func seedTask(t *testing.T, repo TaskRepository, teacher uint, deadline time.Time, groupIDs ...uint) models.Task {
	t.Helper()
	task := models.Task{
		Title:       fmt.Sprintf("Task due %s", deadline.Format(time.RFC3339)),
		Description: "Read chapter 3",
		TeacherID:   teacher,
		Deadline:    deadline,
		MaxPoints:   100,
	}
	for _, id := range groupIDs {
		task.Groups = append(task.Groups, models.TaskGroup{GroupID: id})
	}
	require.NoError(t, repo.Create(context.Background(), &task))
	return task
}

func TestGroupRepositoryDistinctStudents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGroupRepository(db)
	ctx := context.Background()

	g1 := seedGroup(t, repo, 1, 10, 11)
	g2 := seedGroup(t, repo, 1, 11, 12)

	ids, err := repo.StudentIDsInGroups(ctx, []uint{g1.ID, g2.ID})
	require.NoError(t, err)
	require.Equal(t, []uint{10, 11, 12}, ids)

	total, err := repo.CountStudents(ctx, []uint{g1.ID, g2.ID})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)

	require.NoError(t, repo.AddMembers(ctx, g1.ID, []uint{10}), "re-adding a member is ignored")

	groups, err := repo.GroupIDsForStudent(ctx, 11)
	require.NoError(t, err)
	require.Equal(t, []uint{g1.ID, g2.ID}, groups)

	require.NoError(t, repo.RemoveMember(ctx, g1.ID, 11))
	require.ErrorIs(t, repo.RemoveMember(ctx, g1.ID, 11), gorm.ErrRecordNotFound)

	existing, err := repo.ExistingIDs(ctx, []uint{g1.ID, 999})
	require.NoError(t, err)
	require.Equal(t, []uint{g1.ID}, existing)
}

func TestTaskRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	groups := NewGroupRepository(db)
	repo := NewTaskRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	g1 := seedGroup(t, groups, 1, 10)
	g2 := seedGroup(t, groups, 2, 11)

	active := seedTask(t, repo, 1, now.Add(48*time.Hour), g1.ID)
	expired := seedTask(t, repo, 1, now.Add(-time.Hour), g1.ID, g2.ID)
	other := seedTask(t, repo, 2, now.Add(time.Hour), g2.ID)

	tasks, total, err := repo.List(ctx, TaskFilter{GroupIDs: []uint{g1.ID}, Now: now, Sort: "deadline"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, expired.ID, tasks[0].ID)
	require.Equal(t, active.ID, tasks[1].ID)
	require.ElementsMatch(t, []uint{g1.ID, g2.ID}, tasks[0].GroupIDs())

	tasks, total, err = repo.List(ctx, TaskFilter{State: "active", Now: now})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	for _, task := range tasks {
		require.NotEqual(t, expired.ID, task.ID)
	}

	teacher := uint(2)
	tasks, _, err = repo.List(ctx, TaskFilter{TeacherID: &teacher, Now: now})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, other.ID, tasks[0].ID)

	tasks, total, err = repo.List(ctx, TaskFilter{Now: now, Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, tasks, 1)
}

func TestTaskRepositoryUpdateReplacesGroups(t *testing.T) {
	db := setupTestDB(t)
	groups := NewGroupRepository(db)
	repo := NewTaskRepository(db)
	ctx := context.Background()

	g1 := seedGroup(t, groups, 1, 10)
	g2 := seedGroup(t, groups, 1, 11)
	task := seedTask(t, repo, 1, time.Now().Add(time.Hour), g1.ID)

	task.Title = "Renamed"
	task.Groups = []models.TaskGroup{{GroupID: g2.ID}}
	require.NoError(t, repo.Update(ctx, &task, true))

	stored, err := repo.GetByID(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", stored.Title)
	require.Equal(t, []uint{g2.ID}, stored.GroupIDs())
}

func TestTaskRepositoryDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	tasks := NewTaskRepository(db)
	submissions := NewSubmissionRepository(db)
	comments := NewCommentRepository(db)
	ctx := context.Background()

	task := seedTask(t, tasks, 1, time.Now().Add(time.Hour))
	submission := models.Submission{TaskID: task.ID, StudentID: 10, SubmittedAt: time.Now(), Status: models.SubmissionStatusSubmitted}
	require.NoError(t, submissions.Create(ctx, &submission))
	require.NoError(t, comments.Create(ctx, &models.Comment{SubmissionID: submission.ID, AuthorID: 10, AuthorType: models.CommentAuthorStudent, Content: "done"}))

	require.NoError(t, tasks.Delete(ctx, task.ID))

	_, err := submissions.GetByID(ctx, submission.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var remaining int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&remaining).Error)
	require.Zero(t, remaining)

	require.ErrorIs(t, tasks.Delete(ctx, task.ID), gorm.ErrRecordNotFound)
}

func TestSubmissionRepositoryRejectsDuplicate(t *testing.T) {
	db := setupTestDB(t)
	tasks := NewTaskRepository(db)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	task := seedTask(t, tasks, 1, time.Now().Add(time.Hour))
	first := models.Submission{TaskID: task.ID, StudentID: 10, SubmittedAt: time.Now(), Status: models.SubmissionStatusSubmitted}
	require.NoError(t, repo.Create(ctx, &first))

	second := models.Submission{TaskID: task.ID, StudentID: 10, SubmittedAt: time.Now(), Status: models.SubmissionStatusSubmitted}
	require.ErrorIs(t, repo.Create(ctx, &second), ErrDuplicate)
}

func TestSubmissionRepositoryStatsAndOrdering(t *testing.T) {
	db := setupTestDB(t)
	tasks := NewTaskRepository(db)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	task := seedTask(t, tasks, 1, base)
	points := []float64{60, 90}
	for i, student := range []uint{10, 11, 12} {
		submission := models.Submission{
			TaskID:      task.ID,
			StudentID:   student,
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
			IsLate:      i == 2,
			Status:      models.SubmissionStatusSubmitted,
		}
		if i < len(points) {
			p := points[i]
			submission.Points = &p
			submission.Status = models.SubmissionStatusGraded
		}
		require.NoError(t, repo.Create(ctx, &submission))
	}

	items, total, err := repo.List(ctx, SubmissionFilter{TaskID: &task.ID})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Equal(t, uint(12), items[0].StudentID, "expected most recent first")

	stats, err := repo.Stats(ctx, SubmissionFilter{TaskID: &task.ID})
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Total)
	require.Equal(t, int64(2), stats.Graded)
	require.Equal(t, int64(1), stats.Submitted)
	require.Equal(t, int64(1), stats.Late)
	require.NotNil(t, stats.AveragePoints)
	require.InDelta(t, 75.0, *stats.AveragePoints, 0.001)
	require.InDelta(t, 60.0, *stats.MinPoints, 0.001)
	require.InDelta(t, 90.0, *stats.MaxPoints, 0.001)

	empty, err := repo.Stats(ctx, SubmissionFilter{TaskID: ptrUint(999)})
	require.NoError(t, err)
	require.Zero(t, empty.Total)
	require.Nil(t, empty.AveragePoints)
}

func TestCommentRepositoryListByAuthorIncludesTaskTitle(t *testing.T) {
	db := setupTestDB(t)
	tasks := NewTaskRepository(db)
	submissions := NewSubmissionRepository(db)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	task := seedTask(t, tasks, 1, time.Now().Add(time.Hour))
	submission := models.Submission{TaskID: task.ID, StudentID: 10, SubmittedAt: time.Now(), Status: models.SubmissionStatusSubmitted}
	require.NoError(t, submissions.Create(ctx, &submission))

	require.NoError(t, repo.Create(ctx, &models.Comment{SubmissionID: submission.ID, AuthorID: 1, AuthorType: models.CommentAuthorTeacher, Content: "Nice", CreatedAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, repo.Create(ctx, &models.Comment{SubmissionID: submission.ID, AuthorID: 10, AuthorType: models.CommentAuthorStudent, Content: "Thanks"}))

	mine, total, err := repo.ListByAuthor(ctx, 1, 1, 20)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, mine, 1)
	require.Equal(t, task.Title, mine[0].TaskTitle)
	require.Equal(t, task.ID, mine[0].TaskID)

	thread, err := repo.ListBySubmission(ctx, submission.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	require.Equal(t, "Nice", thread[0].Content)

	stats, err := repo.Stats(ctx, CommentStatsFilter{TaskID: &task.ID})
	require.NoError(t, err)
	require.Equal(t, CommentStats{Total: 2, Teacher: 1, Student: 1}, stats)
}

func TestNotificationRepositoryMarkReadScopedToRecipient(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	batch := []models.Notification{
		{RecipientID: 10, RecipientRole: "student", Type: models.NotificationTaskAssigned, Title: "New task", RelatedID: 1},
		{RecipientID: 11, RecipientRole: "student", Type: models.NotificationTaskAssigned, Title: "New task", RelatedID: 1},
	}
	require.NoError(t, repo.CreateBatch(ctx, batch))

	items, err := repo.ListByRecipient(ctx, 10, 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = repo.MarkRead(ctx, items[0].ID, 11)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	updated, err := repo.MarkRead(ctx, items[0].ID, 10)
	require.NoError(t, err)
	require.True(t, updated.Read)
}

func ptrUint(v uint) *uint { return &v }
