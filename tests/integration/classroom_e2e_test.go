package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/config"
	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/handler"
	"github.com/noah-isme/gema-classroom-api/internal/middleware"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
	"github.com/noah-isme/gema-classroom-api/internal/router"
	"github.com/noah-isme/gema-classroom-api/internal/service"
)

const jwtSecret = "integration-secret"

func setupClassroomApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:classroom_e2e?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	groupRepo := repository.NewGroupRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), service.NotificationBusConfig{}, logger)
	dispatcher := service.NewFanoutDispatcher(groupRepo, notifications, service.FanoutConfig{Inline: true}, logger)

	groups := service.NewGroupService(groupRepo, validate, logger)
	tasks := service.NewTaskService(taskRepo, groupRepo, submissionRepo, dispatcher, validate, logger)
	submissions := service.NewSubmissionService(submissionRepo, taskRepo, dispatcher, validate, logger)
	comments := service.NewCommentService(commentRepo, submissionRepo, taskRepo, validate, logger)
	deadlines := service.NewDeadlineService(taskRepo, groupRepo, submissionRepo, dispatcher, time.UTC, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})

	cfg := config.Config{AppName: "Classroom Test", JWTSecret: jwtSecret, WriteRateLimit: 1000}
	router.Register(app, cfg, router.Dependencies{
		TaskHandler:         handler.NewTaskHandler(tasks, groups, deadlines, nil, logger),
		SubmissionHandler:   handler.NewSubmissionHandler(submissions, comments, nil, logger),
		CommentHandler:      handler.NewCommentHandler(comments, logger),
		NotificationHandler: handler.NewNotificationHandler(notifications, deadlines, logger, time.Second),
		GroupHandler:        handler.NewGroupHandler(groups, logger),
		JWTMiddleware:       middleware.JWTProtected(jwtSecret),
		DisableMetrics:      true,
	})

	return app, db
}

func signToken(t *testing.T, userID uint, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  fmt.Sprintf("%d", userID),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func request(t *testing.T, app *fiber.App, token, method, path string, payload interface{}) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response, target *T) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target))
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Data    T      `json:"data"`
}

func TestClassroomEndToEndFlow(t *testing.T) {
	app, db := setupClassroomApp(t)

	teacher := signToken(t, 1, "teacher")
	student := signToken(t, 10, "student")
	classmate := signToken(t, 11, "student")
	admin := signToken(t, 99, "admin")

	// Anonymous and forged tokens are rejected before reaching handlers.
	resp := request(t, app, "", http.MethodGet, "/api/v2/classroom/tasks", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "role": "admin"})
	forgedToken, err := forged.SignedString([]byte("wrong"))
	require.NoError(t, err)
	resp = request(t, app, forgedToken, http.MethodGet, "/api/v2/classroom/tasks", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Step 1: teacher creates a group with two students.
	resp = request(t, app, teacher, http.MethodPost, "/api/v2/classroom/groups", dto.GroupCreateRequest{
		Name:       "XI RPL 2",
		StudentIDs: []uint{10, 11},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var group envelope[dto.GroupResponse]
	decode(t, resp, &group)
	require.Equal(t, uint(1), group.Data.OwnerID)

	// Step 2: teacher publishes a task due tomorrow.
	windowStart, _ := service.TomorrowWindow(time.Now().UTC(), time.UTC)
	deadline := windowStart.Add(12 * time.Hour)
	resp = request(t, app, teacher, http.MethodPost, "/api/v2/classroom/tasks", map[string]interface{}{
		"title":                 "Sorting algorithms",
		"description":           "Compare quicksort and mergesort",
		"assigned_groups":       []uint{group.Data.ID},
		"deadline":              deadline.Format(time.RFC3339),
		"allow_late_submission": false,
		"max_points":            100,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))
	var task envelope[dto.TaskResponse]
	decode(t, resp, &task)

	// Step 3: student submits, classmate does not.
	resp = request(t, app, student, http.MethodPost, "/api/v2/classroom/submissions", map[string]interface{}{
		"task_id": task.Data.ID,
		"link":    "https://github.com/example/sorting",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var submission envelope[dto.SubmissionResponse]
	decode(t, resp, &submission)

	resp = request(t, app, teacher, http.MethodGet, fmt.Sprintf("/api/v2/classroom/tasks/%d", task.Data.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var refreshed envelope[dto.TaskResponse]
	decode(t, resp, &refreshed)
	require.Equal(t, int64(1), refreshed.Data.SubmissionCount)
	require.Equal(t, int64(2), refreshed.Data.TotalStudents)

	// Step 4: teacher comments then returns the work.
	submissionPath := fmt.Sprintf("/api/v2/classroom/submissions/%d", submission.Data.ID)
	resp = request(t, app, teacher, http.MethodPost, submissionPath+"/comments", map[string]string{"content": "Add complexity analysis"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var comment envelope[dto.CommentResponse]
	decode(t, resp, &comment)
	require.Equal(t, "teacher", comment.Data.AuthorType)

	resp = request(t, app, classmate, http.MethodPatch, fmt.Sprintf("/api/v2/classroom/comments/%d", comment.Data.ID), map[string]string{"content": "hijack"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = request(t, app, teacher, http.MethodPatch, submissionPath, map[string]interface{}{
		"points":   70,
		"feedback": "Missing analysis",
		"status":   "returned",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var returned envelope[dto.SubmissionResponse]
	decode(t, resp, &returned)
	require.Equal(t, "returned", returned.Data.Status)

	resp = request(t, app, teacher, http.MethodPatch, submissionPath, map[string]interface{}{"status": "graded"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Step 5: the admin sweep reminds only the classmate.
	resp = request(t, app, admin, http.MethodPost, "/api/v2/classroom/notifications/deadline-sweep", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sweep envelope[dto.DeadlineSweepResponse]
	decode(t, resp, &sweep)
	require.Equal(t, 1, sweep.Data.TasksScanned)
	require.Equal(t, 1, sweep.Data.RemindersQueued)

	var reminders []models.Notification
	require.NoError(t, db.Where("type = ?", models.NotificationDeadlineReminder).Find(&reminders).Error)
	require.Len(t, reminders, 1)
	require.Equal(t, uint(11), reminders[0].RecipientID)

	// Step 6: deleting the task cascades to submissions and comments.
	resp = request(t, app, classmate, http.MethodDelete, fmt.Sprintf("/api/v2/classroom/tasks/%d", task.Data.ID), nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = request(t, app, teacher, http.MethodDelete, fmt.Sprintf("/api/v2/classroom/tasks/%d", task.Data.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var remaining int64
	require.NoError(t, db.Model(&models.Submission{}).Count(&remaining).Error)
	require.Zero(t, remaining)
	require.NoError(t, db.Model(&models.Comment{}).Count(&remaining).Error)
	require.Zero(t, remaining)

	resp = request(t, app, student, http.MethodGet, submissionPath, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
