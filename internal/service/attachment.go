package service

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
)

// UploadedFile references a file already placed in binary storage.
type UploadedFile struct {
	URL          string
	Filename     string
	OriginalName string
	MIMEType     string
}

var (
	attachmentTextPolicy = bluemonday.StrictPolicy()
	attachmentValidator  = validator.New()
)

// NormalizeAttachments merges uploaded files and inline declarations into one ordered list.
// Files come first, then declarations, each in input order. Invalid entries are dropped.
func NormalizeAttachments(files []UploadedFile, decls []dto.AttachmentInput) []models.Attachment {
	attachments := make([]models.Attachment, 0, len(files)+len(decls))

	for _, file := range files {
		url := strings.TrimSpace(file.URL)
		if url == "" {
			continue
		}
		kind := models.AttachmentFile
		if strings.HasPrefix(strings.ToLower(file.MIMEType), "image/") {
			kind = models.AttachmentImage
		}
		attachments = append(attachments, models.Attachment{
			Type:         kind,
			Content:      url,
			Filename:     file.Filename,
			OriginalName: file.OriginalName,
		})
	}

	for _, decl := range decls {
		content := strings.TrimSpace(decl.Content)
		switch models.AttachmentType(strings.ToLower(strings.TrimSpace(decl.Type))) {
		case models.AttachmentText:
			content = strings.TrimSpace(attachmentTextPolicy.Sanitize(content))
			if content == "" {
				continue
			}
			attachments = append(attachments, models.Attachment{Type: models.AttachmentText, Content: content})
		case models.AttachmentLink:
			if !isHTTPURL(content) {
				continue
			}
			attachments = append(attachments, models.Attachment{Type: models.AttachmentLink, Content: content})
		}
	}

	return attachments
}

func isHTTPURL(value string) bool {
	if value == "" {
		return false
	}
	return attachmentValidator.Var(value, "http_url") == nil
}

// linkDeclaration expands the single-link shorthand into a declaration list.
func linkDeclaration(link string, decls []dto.AttachmentInput) []dto.AttachmentInput {
	link = strings.TrimSpace(link)
	if link == "" {
		return decls
	}
	out := make([]dto.AttachmentInput, 0, len(decls)+1)
	out = append(out, dto.AttachmentInput{Type: string(models.AttachmentLink), Content: link})
	return append(out, decls...)
}
