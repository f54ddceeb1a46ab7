package models

// AttachmentType tags the kind of content an attachment carries.
type AttachmentType string

const (
	AttachmentText  AttachmentType = "text"
	AttachmentImage AttachmentType = "image"
	AttachmentLink  AttachmentType = "link"
	AttachmentFile  AttachmentType = "file"
)

// Valid reports whether t is a known attachment type.
func (t AttachmentType) Valid() bool {
	switch t {
	case AttachmentText, AttachmentImage, AttachmentLink, AttachmentFile:
		return true
	default:
		return false
	}
}

// Attachment is a tagged unit of content embedded in a task or submission.
// Content holds the text body, the URL, or the hosted file reference depending on Type.
type Attachment struct {
	Type         AttachmentType `json:"type"`
	Content      string         `json:"content"`
	Filename     string         `json:"filename,omitempty"`
	OriginalName string         `json:"original_name,omitempty"`
}
