package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-classroom-api/internal/apperror"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = apperror.Validation("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = apperror.Validation("file type not allowed")
	// ErrUploadScanFailed indicates validation of the file failed.
	ErrUploadScanFailed = apperror.Validation("file scanning failed")
	// ErrUploadsDisabled is returned when no storage backend is configured.
	ErrUploadsDisabled = apperror.Validation("file uploads are disabled")
)

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// DisabledStorage rejects every upload. Inline text and link attachments keep working.
type DisabledStorage struct{}

// Upload implements FileStorage.
func (DisabledStorage) Upload(context.Context, string, io.Reader) (string, error) {
	return "", ErrUploadsDisabled
}

// AttachmentUploader turns multipart files into stored file references.
type AttachmentUploader interface {
	Upload(ctx context.Context, file *multipart.FileHeader) (UploadedFile, error)
	UploadAll(ctx context.Context, files []*multipart.FileHeader) ([]UploadedFile, error)
}

type attachmentUploader struct {
	storage FileStorage
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewAttachmentUploader constructs an uploader enforcing a per-file size limit.
func NewAttachmentUploader(storage FileStorage, maxSizeMB int, logger zerolog.Logger) AttachmentUploader {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &attachmentUploader{
		storage: storage,
		logger:  logger.With().Str("component", "attachment_uploader").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/gema-classroom-api/internal/service/upload"),
	}
}

func (s *attachmentUploader) UploadAll(ctx context.Context, files []*multipart.FileHeader) ([]UploadedFile, error) {
	uploaded := make([]UploadedFile, 0, len(files))
	for _, file := range files {
		ref, err := s.Upload(ctx, file)
		if err != nil {
			return nil, err
		}
		uploaded = append(uploaded, ref)
	}
	return uploaded, nil
}

func (s *attachmentUploader) Upload(ctx context.Context, file *multipart.FileHeader) (UploadedFile, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store")
	defer span.End()

	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize))
	if file == nil {
		err := apperror.Validation("file is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return UploadedFile{}, err
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return UploadedFile{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return UploadedFile{}, apperror.Internal(err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return UploadedFile{}, apperror.Internal(err)
	}
	if int64(buf.Len()) > s.maxSize {
		span.RecordError(ErrUploadTooLarge)
		span.SetStatus(codes.Error, "payload too large")
		return UploadedFile{}, ErrUploadTooLarge
	}

	detected := mimetype.Detect(buf.Bytes())
	mime := strings.ToLower(detected.String())
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	span.SetAttributes(attribute.String("upload.detected_mime", mime))
	if !isAllowedAttachmentType(mime) {
		span.RecordError(ErrUploadTypeNotAllowed)
		span.SetStatus(codes.Error, "type not allowed")
		return UploadedFile{}, ErrUploadTypeNotAllowed
	}

	if err := s.scan(buf.Bytes(), mime); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return UploadedFile{}, err
	}

	sanitizedName := sanitizeFileName(file.Filename, detected.Extension())
	url, err := s.storage.Upload(ctx, sanitizedName, bytes.NewReader(buf.Bytes()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		if errors.Is(err, ErrUploadsDisabled) {
			return UploadedFile{}, ErrUploadsDisabled
		}
		s.logger.Error().Err(err).Str("file", sanitizedName).Msg("failed to store attachment")
		return UploadedFile{}, apperror.Internal(err)
	}

	span.SetStatus(codes.Ok, "stored")
	return UploadedFile{
		URL:          url,
		Filename:     sanitizedName,
		OriginalName: file.Filename,
		MIMEType:     mime,
	}, nil
}

func (s *attachmentUploader) scan(payload []byte, mime string) error {
	if !strings.Contains(mime, "zip") {
		return nil
	}
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return ErrUploadScanFailed
	}
	var totalUncompressed uint64
	for _, f := range reader.File {
		totalUncompressed += f.UncompressedSize64
		if totalUncompressed > uint64(s.maxSize*20) {
			return apperror.Wrap(errors.New("zip archive uncompressed size too large"), apperror.KindValidation, ErrUploadScanFailed.Message)
		}
	}
	return nil
}

func sanitizeFileName(name, detectedExt string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = detectedExt
	}
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

func isAllowedAttachmentType(mime string) bool {
	if strings.HasPrefix(mime, "image/") || strings.HasPrefix(mime, "text/") {
		return true
	}
	switch mime {
	case "application/pdf",
		"application/zip",
		"application/x-zip-compressed",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return true
	default:
		return false
	}
}
