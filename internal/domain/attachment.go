package domain

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedAttachment is returned when a picked file is not an image.
var ErrUnsupportedAttachment = errors.New("only image attachments are supported")

// Attachment is a file picked in the input bar and sent as the multipart "file" part.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Size returns the attachment size in bytes.
func (a *Attachment) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// LoadAttachment reads an image from disk.
func LoadAttachment(path string) (*Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return NewAttachment(filepath.Base(path), data)
}

// NewAttachment builds an attachment, detecting the content type from the
// file extension first and the leading bytes second.
func NewAttachment(name string, data []byte) (*Attachment, error) {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	if !IsImage(contentType) {
		return nil, fmt.Errorf("%w: %s is %s", ErrUnsupportedAttachment, name, contentType)
	}
	return &Attachment{Name: name, ContentType: contentType, Data: data}, nil
}

// IsImage reports whether a content type is an image/* type.
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}
