package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-classroom-api/internal/dto"
	"github.com/noah-isme/gema-classroom-api/internal/models"
)

func TestNormalizeAttachmentsOrdersFilesBeforeDeclarations(t *testing.T) {
	files := []UploadedFile{
		{URL: "https://cdn.test/a.png", Filename: "a.png", OriginalName: "A.png", MIMEType: "image/png"},
		{URL: " ", Filename: "ghost.pdf"},
		{URL: "https://cdn.test/b.pdf", Filename: "b.pdf", OriginalName: "B.pdf", MIMEType: "application/pdf"},
	}
	decls := []dto.AttachmentInput{
		{Type: "LINK", Content: " https://example.com/ref "},
		{Type: "text", Content: "<p>see <a href=\"x\">this</a></p>"},
		{Type: "link", Content: "javascript:alert(1)"},
		{Type: "text", Content: "<br/>"},
		{Type: "video", Content: "https://example.com/v.mp4"},
	}

	got := NormalizeAttachments(files, decls)
	require.Equal(t, []models.Attachment{
		{Type: models.AttachmentImage, Content: "https://cdn.test/a.png", Filename: "a.png", OriginalName: "A.png"},
		{Type: models.AttachmentFile, Content: "https://cdn.test/b.pdf", Filename: "b.pdf", OriginalName: "B.pdf"},
		{Type: models.AttachmentLink, Content: "https://example.com/ref"},
		{Type: models.AttachmentText, Content: "see this"},
	}, got)
}

func TestLinkDeclarationPrependsShorthand(t *testing.T) {
	decls := []dto.AttachmentInput{{Type: "text", Content: "notes"}}

	require.Equal(t, decls, linkDeclaration("  ", decls))

	expanded := linkDeclaration("https://example.com", decls)
	require.Len(t, expanded, 2)
	require.Equal(t, "link", expanded[0].Type)
	require.Equal(t, "https://example.com", expanded[0].Content)
	require.Equal(t, "notes", expanded[1].Content)
}
