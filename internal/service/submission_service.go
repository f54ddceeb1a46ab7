package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-classroom-api/internal/authz"
	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/observability"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

// SubmissionService exposes the submission lifecycle.
type SubmissionService interface {
	Create(ctx context.Context, actor authz.Actor, req dto.SubmissionCreateRequest, files []UploadedFile) (dto.SubmissionResponse, error)
	Update(ctx context.Context, actor authz.Actor, id uint, req dto.SubmissionUpdateRequest, files []UploadedFile) (dto.SubmissionResponse, error)
	Grade(ctx context.Context, actor authz.Actor, id uint, req dto.SubmissionGradeRequest) (dto.SubmissionResponse, error)
	Delete(ctx context.Context, actor authz.Actor, id uint) error
	Get(ctx context.Context, actor authz.Actor, id uint) (dto.SubmissionResponse, error)
	List(ctx context.Context, actor authz.Actor, filter dto.SubmissionFilter) (dto.SubmissionListResponse, error)
	Stats(ctx context.Context, actor authz.Actor, req dto.SubmissionStatsRequest) (dto.SubmissionStatsResponse, error)
}

type submissionService struct {
	repo      repository.SubmissionRepository
	tasks     repository.TaskRepository
	events    EventSink
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewSubmissionService constructs the submission state machine.
func NewSubmissionService(
	repo repository.SubmissionRepository,
	tasks repository.TaskRepository,
	events EventSink,
	validate *validator.Validate,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		repo:      repo,
		tasks:     tasks,
		events:    sinkOrDiscard(events),
		validator: validate,
		logger:    logger.With().Str("component", "submission_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-classroom-api/internal/service/submission"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *submissionService) Create(ctx context.Context, actor authz.Actor, req dto.SubmissionCreateRequest, files []UploadedFile) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.create", trace.WithAttributes(
		attribute.Int64("actor.id", int64(actor.ID)),
		attribute.Int64("task.id", int64(req.TaskID)),
	))
	defer span.End()

	if !authz.CanAct(actor, authz.ActionSubmissionCreate, authz.Owners{}) {
		span.SetStatus(codes.Error, "forbidden")
		return dto.SubmissionResponse{}, forbidden("submit work")
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionResponse{}, err
	}

	task, err := s.tasks.GetByID(ctx, req.TaskID)
	if err != nil {
		return dto.SubmissionResponse{}, storeError(err, ErrTaskNotFound)
	}

	now := s.now()
	if !task.AcceptsSubmissionAt(now) {
		span.SetStatus(codes.Error, "closed")
		return dto.SubmissionResponse{}, ErrSubmissionsClosed
	}

	content := NormalizeAttachments(files, linkDeclaration(req.Link, req.Attachments))
	if len(content) == 0 {
		return dto.SubmissionResponse{}, ErrEmptySubmission
	}

	if _, err := s.repo.GetByTaskAndStudent(ctx, task.ID, actor.ID); err == nil {
		return dto.SubmissionResponse{}, ErrSubmissionExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.SubmissionResponse{}, storeError(err, nil)
	}

	submission := models.Submission{
		TaskID:      task.ID,
		StudentID:   actor.ID,
		Content:     content,
		SubmittedAt: now,
		IsLate:      models.IsLateAt(now, task.Deadline),
		Status:      models.SubmissionStatusSubmitted,
	}

	if err := s.repo.Create(ctx, &submission); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.SubmissionResponse{}, ErrSubmissionExists
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.SubmissionResponse{}, storeError(err, nil)
	}

	observability.SubmissionEvents().WithLabelValues("created").Inc()
	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("task_id", task.ID).
		Uint("student_id", actor.ID).
		Bool("late", submission.IsLate).
		Msg("submission created")
	s.events.Emit(ctx, Event{Kind: EventSubmissionCreated, Task: task, Submission: submission})

	return dto.NewSubmissionResponse(submission).WithTask(task), nil
}

func (s *submissionService) Update(ctx context.Context, actor authz.Actor, id uint, req dto.SubmissionUpdateRequest, files []UploadedFile) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.update", trace.WithAttributes(attribute.Int64("submission.id", int64(id))))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, task, err := s.load(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	owners := submissionOwners(submission, task)
	canEditContent := authz.CanAct(actor, authz.ActionSubmissionUpdateContent, owners)
	canGrade := authz.CanAct(actor, authz.ActionSubmissionGrade, owners)
	if !canEditContent && !canGrade {
		span.SetStatus(codes.Error, "forbidden")
		return dto.SubmissionResponse{}, forbidden("update this submission")
	}

	contentPatch := canEditContent && (req.Link != nil || req.Attachments != nil || len(files) > 0)
	gradePatch := canGrade && (req.Points != nil || req.Feedback != nil || req.Status != nil)
	if !contentPatch && !gradePatch {
		return dto.SubmissionResponse{}, ErrEmptyPatch
	}

	if contentPatch {
		if submission.Status != models.SubmissionStatusSubmitted {
			return dto.SubmissionResponse{}, ErrSubmissionLocked
		}
		var link string
		if req.Link != nil {
			link = *req.Link
		}
		var decls []dto.AttachmentInput
		if req.Attachments != nil {
			decls = *req.Attachments
		}
		content := NormalizeAttachments(files, linkDeclaration(link, decls))
		if len(content) == 0 {
			return dto.SubmissionResponse{}, ErrEmptySubmission
		}
		submission.Content = content
	}

	graded := false
	if gradePatch {
		next := submission.Status
		if req.Status != nil {
			next = models.SubmissionStatus(*req.Status)
			if !models.CanTransition(submission.Status, next) {
				return dto.SubmissionResponse{}, ErrInvalidTransition
			}
		}
		if (req.Points != nil || req.Feedback != nil) && next == models.SubmissionStatusSubmitted {
			return dto.SubmissionResponse{}, ErrGradeNeedsStatus
		}
		if req.Points != nil {
			if err := validatePoints(*req.Points, task); err != nil {
				return dto.SubmissionResponse{}, err
			}
			points := *req.Points
			submission.Points = &points
		}
		if next == models.SubmissionStatusGraded {
			if submission.Points == nil {
				return dto.SubmissionResponse{}, ErrPointsRequired
			}
			graded = submission.Status != models.SubmissionStatusGraded || req.Points != nil
			if graded {
				s.markGraded(&submission, actor)
			}
		}
		submission.Status = next
		if req.Feedback != nil {
			submission.Feedback = *req.Feedback
		}
	}

	if err := s.repo.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		return dto.SubmissionResponse{}, storeError(err, ErrSubmissionNotFound)
	}

	s.logger.Info().Uint("submission_id", submission.ID).Uint("actor_id", actor.ID).Str("status", string(submission.Status)).Msg("submission updated")
	if graded {
		observability.SubmissionEvents().WithLabelValues("graded").Inc()
		s.events.Emit(ctx, Event{Kind: EventSubmissionGraded, Task: task, Submission: submission})
	}
	return dto.NewSubmissionResponse(submission).WithTask(task), nil
}

func (s *submissionService) Grade(ctx context.Context, actor authz.Actor, id uint, req dto.SubmissionGradeRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.grade", trace.WithAttributes(
		attribute.Int64("submission.id", int64(id)),
		attribute.Int64("actor.id", int64(actor.ID)),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, task, err := s.load(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if !authz.CanAct(actor, authz.ActionSubmissionGrade, submissionOwners(submission, task)) {
		span.SetStatus(codes.Error, "forbidden")
		return dto.SubmissionResponse{}, forbidden("grade this submission")
	}
	if !models.CanTransition(submission.Status, models.SubmissionStatusGraded) {
		return dto.SubmissionResponse{}, ErrInvalidTransition
	}
	if err := validatePoints(*req.Points, task); err != nil {
		span.SetStatus(codes.Error, "points out of range")
		return dto.SubmissionResponse{}, err
	}

	points := *req.Points
	feedback := ""
	if req.Feedback != nil {
		feedback = *req.Feedback
	}

	submission.Status = models.SubmissionStatusGraded
	submission.Points = &points
	submission.Feedback = feedback
	s.markGraded(&submission, actor)

	if err := s.repo.Update(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return dto.SubmissionResponse{}, storeError(err, ErrSubmissionNotFound)
	}

	span.SetAttributes(attribute.Float64("submission.points", points))
	observability.SubmissionEvents().WithLabelValues("graded").Inc()
	s.logger.Info().Uint("submission_id", submission.ID).Uint("grader_id", actor.ID).Float64("points", points).Msg("submission graded")
	s.events.Emit(ctx, Event{Kind: EventSubmissionGraded, Task: task, Submission: submission})

	return dto.NewSubmissionResponse(submission).WithTask(task), nil
}

func (s *submissionService) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	submission, task, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	owners := submissionOwners(submission, task)
	if !authz.CanAct(actor, authz.ActionSubmissionDelete, owners) {
		return forbidden("delete this submission")
	}
	if !authz.CanAct(actor, authz.ActionSubmissionGrade, owners) && submission.Status != models.SubmissionStatusSubmitted {
		return ErrSubmissionLocked
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError(err, ErrSubmissionNotFound)
	}

	observability.SubmissionEvents().WithLabelValues("deleted").Inc()
	s.logger.Info().Uint("submission_id", id).Uint("actor_id", actor.ID).Msg("submission deleted")
	return nil
}

func (s *submissionService) Get(ctx context.Context, actor authz.Actor, id uint) (dto.SubmissionResponse, error) {
	submission, task, err := s.load(ctx, id)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if !authz.CanAct(actor, authz.ActionSubmissionView, submissionOwners(submission, task)) {
		return dto.SubmissionResponse{}, forbidden("view this submission")
	}
	return dto.NewSubmissionResponse(submission).WithTask(task), nil
}

func (s *submissionService) List(ctx context.Context, actor authz.Actor, filter dto.SubmissionFilter) (dto.SubmissionListResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return dto.SubmissionListResponse{}, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	query := repository.SubmissionFilter{
		TaskID:    filter.TaskID,
		StudentID: filter.StudentID,
		Status:    filter.Status,
		Page:      page,
		PageSize:  pageSize,
	}

	switch {
	case actor.IsStudent():
		studentID := actor.ID
		query.StudentID = &studentID
	case actor.IsGrader():
	default:
		return dto.SubmissionListResponse{}, forbidden("list submissions")
	}

	submissions, total, err := s.repo.List(ctx, query)
	if err != nil {
		return dto.SubmissionListResponse{}, storeError(err, nil)
	}

	items := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		items = append(items, dto.NewSubmissionResponse(submission))
	}

	return dto.SubmissionListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

// Stats aggregates over one task, or over every task the caller owns when no
// task is given. Admins see all tasks.
func (s *submissionService) Stats(ctx context.Context, actor authz.Actor, req dto.SubmissionStatsRequest) (dto.SubmissionStatsResponse, error) {
	filter := repository.SubmissionFilter{TaskID: req.TaskID}
	owners := authz.Owners{}

	if req.TaskID != nil {
		task, err := s.tasks.GetByID(ctx, *req.TaskID)
		if err != nil {
			return dto.SubmissionStatsResponse{}, storeError(err, ErrTaskNotFound)
		}
		owners.Grader = task.TeacherID
	}
	if !authz.CanAct(actor, authz.ActionSubmissionStats, owners) {
		return dto.SubmissionStatsResponse{}, forbidden("view submission statistics")
	}
	if req.TaskID == nil && !actor.IsAdmin() {
		teacherID := actor.ID
		filter.TeacherID = &teacherID
	}

	stats, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return dto.SubmissionStatsResponse{}, storeError(err, nil)
	}

	return dto.SubmissionStatsResponse{
		Total:         stats.Total,
		Submitted:     stats.Submitted,
		Graded:        stats.Graded,
		Returned:      stats.Returned,
		Late:          stats.Late,
		AveragePoints: stats.AveragePoints,
		MinPoints:     stats.MinPoints,
		MaxPoints:     stats.MaxPoints,
	}, nil
}

func (s *submissionService) load(ctx context.Context, id uint) (models.Submission, models.Task, error) {
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.Submission{}, models.Task{}, storeError(err, ErrSubmissionNotFound)
	}
	task, err := s.tasks.GetByID(ctx, submission.TaskID)
	if err != nil {
		return models.Submission{}, models.Task{}, storeError(err, ErrTaskNotFound)
	}
	return submission, task, nil
}

func (s *submissionService) markGraded(submission *models.Submission, actor authz.Actor) {
	now := s.now()
	graderID := actor.ID
	submission.GradedBy = &graderID
	submission.GradedAt = &now
}

func submissionOwners(submission models.Submission, task models.Task) authz.Owners {
	return authz.Owners{Subject: submission.StudentID, Grader: task.TeacherID}
}

func validatePoints(points float64, task models.Task) error {
	if points < 0 || points > float64(task.MaxPoints) {
		return ErrPointsOutOfRange
	}
	return nil
}
