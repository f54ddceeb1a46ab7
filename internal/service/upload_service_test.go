package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-classroom-api/internal/apperror"
)

type storageStub struct {
	names    []string
	uploaded bytes.Buffer
	err      error
}

func (s *storageStub) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.uploaded.Reset()
	if _, err := s.uploaded.ReadFrom(reader); err != nil {
		return "", err
	}
	s.names = append(s.names, name)
	return "https://cdn.example.com/" + name, nil
}

func TestAttachmentUploaderRejectsSize(t *testing.T) {
	uploader := NewAttachmentUploader(&storageStub{}, 1, testLogger())

	file := newTestFileHeader(t, "notes.txt", bytes.Repeat([]byte("a"), 2*1024*1024))
	_, err := uploader.Upload(context.Background(), file)
	require.ErrorIs(t, err, ErrUploadTooLarge)
}

func TestAttachmentUploaderRejectsType(t *testing.T) {
	uploader := NewAttachmentUploader(&storageStub{}, 5, testLogger())

	elf := append([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1}, bytes.Repeat([]byte{0}, 64)...)
	_, err := uploader.Upload(context.Background(), newTestFileHeader(t, "tool", elf))
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)

	_, err = uploader.Upload(context.Background(), nil)
	require.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestAttachmentUploaderStoresImagesAndText(t *testing.T) {
	storage := &storageStub{}
	uploader := NewAttachmentUploader(storage, 5, testLogger())

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	files := []*multipart.FileHeader{
		newTestFileHeader(t, "My Diagram!.PNG", png),
		newTestFileHeader(t, "essay draft.txt", []byte("plain text essay")),
	}

	uploaded, err := uploader.UploadAll(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, uploaded, 2)

	require.Equal(t, "image/png", uploaded[0].MIMEType)
	require.Equal(t, "my-diagram.png", uploaded[0].Filename)
	require.Equal(t, "My Diagram!.PNG", uploaded[0].OriginalName)
	require.Equal(t, "https://cdn.example.com/my-diagram.png", uploaded[0].URL)

	require.Equal(t, "text/plain", uploaded[1].MIMEType)
	require.Equal(t, "essay-draft.txt", uploaded[1].Filename)
	require.Equal(t, "plain text essay", storage.uploaded.String())

	attachments := NormalizeAttachments(uploaded, nil)
	require.Len(t, attachments, 2)
	require.Equal(t, "image", string(attachments[0].Type))
	require.Equal(t, "file", string(attachments[1].Type))
}

func TestAttachmentUploaderScansArchivesAndWrapsStorageErrors(t *testing.T) {
	buf := &bytes.Buffer{}
	archive := zip.NewWriter(buf)
	entry, err := archive.Create("report.txt")
	require.NoError(t, err)
	_, err = entry.Write([]byte("quarterly report"))
	require.NoError(t, err)
	require.NoError(t, archive.Close())

	storage := &storageStub{}
	uploader := NewAttachmentUploader(storage, 5, testLogger())
	stored, err := uploader.Upload(context.Background(), newTestFileHeader(t, "bundle.zip", buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "bundle.zip", stored.Filename)

	storage.err = errors.New("cdn offline")
	_, err = uploader.Upload(context.Background(), newTestFileHeader(t, "bundle.zip", buf.Bytes()))
	require.Equal(t, apperror.KindInternal, apperror.KindOf(err))
}

func TestAttachmentUploaderReportsDisabledStorage(t *testing.T) {
	uploader := NewAttachmentUploader(DisabledStorage{}, 5, testLogger())

	_, err := uploader.Upload(context.Background(), newTestFileHeader(t, "notes.txt", []byte("draft")))
	require.ErrorIs(t, err, ErrUploadsDisabled)
	require.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}
