package capture

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tphakala/zoolog/internal/backend"
)

// AttachmentKind tags what an attachment shows
type AttachmentKind string

const (
	AttachmentAnimal    AttachmentKind = "animal"
	AttachmentEnclosure AttachmentKind = "enclosure"
	AttachmentEmergency AttachmentKind = "emergency" // video, only while the emergency flag is set
	AttachmentGate      AttachmentKind = "gate"      // post-submit safety check photo
)

// Source opens attachment content. Sessions never read it except to upload.
type Source interface {
	Open() (io.ReadCloser, error)
}

// BytesSource is content already in memory
type BytesSource []byte

func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// FileSource is content on local disk
type FileSource string

func (p FileSource) Open() (io.ReadCloser, error) {
	return os.Open(filepath.Clean(string(p)))
}

// Attachment is an opaque handle to a user-selected file.
type Attachment struct {
	ID          string         `json:"id"`
	Kind        AttachmentKind `json:"kind"`
	Name        string         `json:"name"`
	ContentType string         `json:"content_type"`
	Size        int64          `json:"size"`
	source      Source
}

// NewAttachment creates a handle with a fresh ID.
func NewAttachment(kind AttachmentKind, name, contentType string, size int64, src Source) *Attachment {
	return &Attachment{
		ID:          uuid.NewString(),
		Kind:        kind,
		Name:        filepath.Base(name),
		ContentType: contentType,
		Size:        size,
		source:      src,
	}
}

func (a *Attachment) isVideo() bool { return strings.HasPrefix(a.ContentType, "video/") }
func (a *Attachment) isImage() bool { return strings.HasPrefix(a.ContentType, "image/") }

func (a *Attachment) mediaType() backend.MediaType {
	if a.isVideo() {
		return backend.MediaVideo
	}
	return backend.MediaImage
}

func (a *Attachment) file() backend.File {
	return backend.File{
		Name:        a.Name,
		ContentType: a.ContentType,
		Size:        a.Size,
		Open: func() (io.ReadCloser, error) {
			if a.source == nil {
				return nil, os.ErrNotExist
			}
			return a.source.Open()
		},
	}
}
