package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/apperror"
	"github.com/noah-isme/gema-classroom-api/internal/authz"
	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
	"github.com/noah-isme/gema-classroom-api/internal/observability"
	"github.com/noah-isme/gema-classroom-api/internal/repository"
)

const maxCommentRunes = 1000

// CommentService manages submission comment threads.
type CommentService interface {
	Create(ctx context.Context, actor authz.Actor, submissionID uint, req dto.CommentCreateRequest) (dto.CommentResponse, error)
	List(ctx context.Context, actor authz.Actor, submissionID uint) ([]dto.CommentResponse, error)
	Update(ctx context.Context, actor authz.Actor, commentID uint, req dto.CommentUpdateRequest) (dto.CommentResponse, error)
	Delete(ctx context.Context, actor authz.Actor, commentID uint) error
	ListMine(ctx context.Context, actor authz.Actor, page, pageSize int) (dto.AuthoredCommentListResponse, error)
	Stats(ctx context.Context, actor authz.Actor, req dto.CommentStatsRequest) (dto.CommentStatsResponse, error)
}

type commentService struct {
	repo        repository.CommentRepository
	submissions repository.SubmissionRepository
	tasks       repository.TaskRepository
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewCommentService constructs the comment thread service.
func NewCommentService(
	repo repository.CommentRepository,
	submissions repository.SubmissionRepository,
	tasks repository.TaskRepository,
	validate *validator.Validate,
	logger zerolog.Logger,
) CommentService {
	return &commentService{
		repo:        repo,
		submissions: submissions,
		tasks:       tasks,
		validator:   validate,
		sanitizer:   bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "comment_service").Logger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *commentService) Create(ctx context.Context, actor authz.Actor, submissionID uint, req dto.CommentCreateRequest) (dto.CommentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CommentResponse{}, err
	}

	owners, err := s.threadOwners(ctx, submissionID)
	if err != nil {
		return dto.CommentResponse{}, err
	}
	if !authz.CanAct(actor, authz.ActionCommentCreate, owners) {
		return dto.CommentResponse{}, forbidden("comment on this submission")
	}

	content, err := s.sanitize(req.Content)
	if err != nil {
		return dto.CommentResponse{}, err
	}

	comment := models.Comment{
		SubmissionID: submissionID,
		AuthorID:     actor.ID,
		AuthorType:   authorTypeFor(actor),
		Content:      content,
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, &comment); err != nil {
		return dto.CommentResponse{}, storeError(err, nil)
	}

	observability.CommentEvents().WithLabelValues("created").Inc()
	s.logger.Info().Uint("comment_id", comment.ID).Uint("submission_id", submissionID).Uint("author_id", actor.ID).Msg("comment created")
	return dto.NewCommentResponse(comment), nil
}

func (s *commentService) List(ctx context.Context, actor authz.Actor, submissionID uint) ([]dto.CommentResponse, error) {
	owners, err := s.threadOwners(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !authz.CanAct(actor, authz.ActionCommentView, owners) {
		return nil, forbidden("view comments on this submission")
	}

	comments, err := s.repo.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, storeError(err, nil)
	}
	return dto.NewCommentResponseSlice(comments), nil
}

func (s *commentService) Update(ctx context.Context, actor authz.Actor, commentID uint, req dto.CommentUpdateRequest) (dto.CommentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CommentResponse{}, err
	}

	comment, err := s.repo.GetByID(ctx, commentID)
	if err != nil {
		return dto.CommentResponse{}, storeError(err, ErrCommentNotFound)
	}
	if !authz.CanAct(actor, authz.ActionCommentUpdate, authz.Owners{Subject: comment.AuthorID}) {
		return dto.CommentResponse{}, forbidden("edit this comment")
	}

	now := s.now()
	if !comment.EditableAt(now) {
		return dto.CommentResponse{}, ErrCommentWindowExpired
	}

	content, err := s.sanitize(req.Content)
	if err != nil {
		return dto.CommentResponse{}, err
	}

	if err := s.repo.UpdateContent(ctx, comment.ID, content, now); err != nil {
		return dto.CommentResponse{}, storeError(err, ErrCommentNotFound)
	}
	comment.Content = content
	comment.UpdatedAt = now

	observability.CommentEvents().WithLabelValues("edited").Inc()
	return dto.NewCommentResponse(comment), nil
}

func (s *commentService) Delete(ctx context.Context, actor authz.Actor, commentID uint) error {
	comment, err := s.repo.GetByID(ctx, commentID)
	if err != nil {
		return storeError(err, ErrCommentNotFound)
	}

	owners, err := s.threadOwners(ctx, comment.SubmissionID)
	if err != nil {
		return err
	}
	owners.Subject = comment.AuthorID
	if !authz.CanAct(actor, authz.ActionCommentDelete, owners) {
		return forbidden("delete this comment")
	}

	if err := s.repo.Delete(ctx, commentID); err != nil {
		return storeError(err, ErrCommentNotFound)
	}

	observability.CommentEvents().WithLabelValues("deleted").Inc()
	s.logger.Info().Uint("comment_id", commentID).Uint("actor_id", actor.ID).Msg("comment deleted")
	return nil
}

func (s *commentService) ListMine(ctx context.Context, actor authz.Actor, page, pageSize int) (dto.AuthoredCommentListResponse, error) {
	if actor.ID == 0 {
		return dto.AuthoredCommentListResponse{}, forbidden("list comments")
	}

	page, pageSize = normalizePage(page, pageSize)
	rows, total, err := s.repo.ListByAuthor(ctx, actor.ID, page, pageSize)
	if err != nil {
		return dto.AuthoredCommentListResponse{}, storeError(err, nil)
	}

	items := make([]dto.AuthoredCommentResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.AuthoredCommentResponse{
			CommentResponse: dto.NewCommentResponse(row.Comment),
			TaskID:          row.TaskID,
			TaskTitle:       row.TaskTitle,
		})
	}

	return dto.AuthoredCommentListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *commentService) Stats(ctx context.Context, actor authz.Actor, req dto.CommentStatsRequest) (dto.CommentStatsResponse, error) {
	filter := repository.CommentStatsFilter{TaskID: req.TaskID, SubmissionID: req.SubmissionID}
	owners := authz.Owners{}

	switch {
	case req.SubmissionID != nil:
		scoped, err := s.threadOwners(ctx, *req.SubmissionID)
		if err != nil {
			return dto.CommentStatsResponse{}, err
		}
		owners.Grader = scoped.Grader
	case req.TaskID != nil:
		task, err := s.tasks.GetByID(ctx, *req.TaskID)
		if err != nil {
			return dto.CommentStatsResponse{}, storeError(err, ErrTaskNotFound)
		}
		owners.Grader = task.TeacherID
	}

	if !authz.CanAct(actor, authz.ActionCommentStats, owners) {
		return dto.CommentStatsResponse{}, forbidden("view comment statistics")
	}
	if owners.Grader == 0 && !actor.IsAdmin() {
		teacherID := actor.ID
		filter.TeacherID = &teacherID
	}

	stats, err := s.repo.Stats(ctx, filter)
	if err != nil {
		return dto.CommentStatsResponse{}, storeError(err, nil)
	}
	return dto.CommentStatsResponse{Total: stats.Total, Teacher: stats.Teacher, Student: stats.Student}, nil
}

// threadOwners resolves the submission student and the owning teacher of its task.
func (s *commentService) threadOwners(ctx context.Context, submissionID uint) (authz.Owners, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return authz.Owners{}, storeError(err, ErrSubmissionNotFound)
	}
	task, err := s.tasks.GetByID(ctx, submission.TaskID)
	if err != nil {
		return authz.Owners{}, storeError(err, ErrTaskNotFound)
	}
	return authz.Owners{Subject: submission.StudentID, Grader: task.TeacherID}, nil
}

func (s *commentService) sanitize(raw string) (string, error) {
	content := strings.TrimSpace(s.sanitizer.Sanitize(raw))
	length := utf8.RuneCountInString(content)
	if length == 0 {
		return "", apperror.Validation("comment content is required")
	}
	if length > maxCommentRunes {
		return "", apperror.Validation("comment content must be at most 1000 characters")
	}
	return content, nil
}

// authorTypeFor tags teachers and instructors as teacher; admins and students are student.
func authorTypeFor(actor authz.Actor) models.CommentAuthorType {
	if actor.Role == authz.RoleTeacher || actor.Role == authz.RoleInstructor {
		return models.CommentAuthorTeacher
	}
	return models.CommentAuthorStudent
}
