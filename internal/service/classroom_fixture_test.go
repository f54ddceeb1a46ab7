package service

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/authz"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

var fixedNow = time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// recordingSink keeps every event and forwards it to next when set.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	next   EventSink
}

func (r *recordingSink) Emit(ctx context.Context, event Event) {
	r.mu.Lock()
	r.events = append(r.events, event)
	next := r.next
	r.mu.Unlock()
	if next != nil {
		next.Emit(ctx, event)
	}
}

func (r *recordingSink) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, 0, len(r.events))
	for _, event := range r.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

func (r *recordingSink) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type classroomFixture struct {
	db             *gorm.DB
	groupRepo      repository.GroupRepository
	taskRepo       repository.TaskRepository
	submissionRepo repository.SubmissionRepository
	commentRepo    repository.CommentRepository
	notifyRepo     repository.NotificationRepository
	sink           *recordingSink
	groups         GroupService
	tasks          TaskService
	submissions    SubmissionService
	comments       CommentService
	deadlines      DeadlineService
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:svc_%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
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

// newClassroomFixture wires every service against one database with the clock pinned to fixedNow.
func newClassroomFixture(t *testing.T) *classroomFixture {
	t.Helper()

	db := setupServiceDB(t)
	validate := validator.New(validator.WithRequiredStructEnabled())

	f := &classroomFixture{
		db:             db,
		groupRepo:      repository.NewGroupRepository(db),
		taskRepo:       repository.NewTaskRepository(db),
		submissionRepo: repository.NewSubmissionRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		notifyRepo:     repository.NewNotificationRepository(db),
		sink:           &recordingSink{},
	}
	sink := f.sink

	f.groups = NewGroupService(f.groupRepo, validate, testLogger())
	f.tasks = NewTaskService(f.taskRepo, f.groupRepo, f.submissionRepo, sink, validate, testLogger())
	f.submissions = NewSubmissionService(f.submissionRepo, f.taskRepo, sink, validate, testLogger())
	f.comments = NewCommentService(f.commentRepo, f.submissionRepo, f.taskRepo, validate, testLogger())
	f.deadlines = NewDeadlineService(f.taskRepo, f.groupRepo, f.submissionRepo, sink, time.UTC, testLogger())

	f.setNow(fixedNow)
	return f
}

func (f *classroomFixture) setNow(now time.Time) {
	clock := func() time.Time { return now }
	f.tasks.(*taskService).now = clock
	f.submissions.(*submissionService).now = clock
	f.comments.(*commentService).now = clock
	f.deadlines.(*deadlineService).now = clock
}

func (f *classroomFixture) group(t *testing.T, owner uint, students ...uint) uint {
	t.Helper()
	group := models.Group{Name: fmt.Sprintf("class-%d-%d", owner, time.Now().UnixNano()), OwnerID: owner}
	require.NoError(t, f.groupRepo.Create(context.Background(), &group))
	require.NoError(t, f.groupRepo.AddMembers(context.Background(), group.ID, students))
	return group.ID
}

func teacherActor(id uint) authz.Actor { return authz.Actor{ID: id, Role: authz.RoleTeacher} }

func studentActor(id uint) authz.Actor { return authz.Actor{ID: id, Role: authz.RoleStudent} }

func adminActor(id uint) authz.Actor { return authz.Actor{ID: id, Role: authz.RoleAdmin} }

func float64Ptr(v float64) *float64 { return &v }

func stringPtr(v string) *string { return &v }

func newTestFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(int64(len(content))+1024))
	files := req.MultipartForm.File["file"]
	require.Len(t, files, 1)
	return files[0]
}
