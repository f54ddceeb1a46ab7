package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-classroom-api/internal/apperror"
	"github.com/noah-isme/gema-classroom-api/internal/authz"
	"github.com/noah-isme/gema-classroom-api/internal/middleware"
	"github.com/noah-isme/gema-classroom-api/internal/service"
	"github.com/noah-isme/gema-classroom-api/internal/utils"
)

var errUnauthenticated = errors.New("authentication required")

// requestContext carries the correlation id into service calls.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func actorFromRequest(c *fiber.Ctx) (authz.Actor, error) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		return authz.Actor{}, errUnauthenticated
	}
	return actor, nil
}

// respondError renders any service error through the kinded envelope.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	if errors.Is(err, errUnauthenticated) {
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	}

	appErr := apperror.FromError(err)
	status := apperror.HTTPStatus(appErr.Kind)
	if appErr.Kind == apperror.KindInternal {
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("internal server error")
	}
	return utils.SendErrorWithCode(c, status, string(appErr.Kind), appErr.Message)
}

func badRequest(c *fiber.Ctx, message string) error {
	return utils.SendErrorWithCode(c, fiber.StatusBadRequest, string(apperror.KindValidation), message)
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(parsed), nil
}

func parseQueryUint(c *fiber.Ctx, key string) (*uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", key)
	}
	result := uint(parsed)
	return &result, nil
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return parsed, nil
}

// parseUintList accepts repeated values and comma separated lists.
func parseUintList(values ...string) ([]uint, error) {
	var out []uint
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			parsed, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid id %q", part)
			}
			out = append(out, uint(parsed))
		}
	}
	return out, nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

// formValues returns every value posted under key in a multipart body.
func formValues(c *fiber.Ctx, key string) []string {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.Value[key]
}

// bindPayload decodes JSON bodies directly. Multipart bodies may carry the same JSON in a
// "payload" field; otherwise fill reads the discrete form fields.
func bindPayload(c *fiber.Ctx, target interface{}, fill func() error) error {
	if !isMultipart(c) {
		if len(c.Body()) == 0 {
			return nil
		}
		return c.BodyParser(target)
	}
	if raw := strings.TrimSpace(c.FormValue("payload")); raw != "" {
		return json.Unmarshal([]byte(raw), target)
	}
	if fill == nil {
		return nil
	}
	return fill()
}

// uploadFormFiles stores every "file" part through the uploader.
func uploadFormFiles(c *fiber.Ctx, uploader service.AttachmentUploader) ([]service.UploadedFile, error) {
	if !isMultipart(c) || uploader == nil {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperror.Validation("invalid multipart form")
	}
	headers := make([]*multipart.FileHeader, 0, len(form.File["file"])+len(form.File["files"]))
	headers = append(headers, form.File["file"]...)
	headers = append(headers, form.File["files"]...)
	if len(headers) == 0 {
		return nil, nil
	}
	return uploader.UploadAll(requestContext(c), headers)
}

func parseFormBool(value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, nil
	}
	return strconv.ParseBool(value)
}
