package resume

import (
	"mime"
	"path/filepath"
	"strings"
)

const (
	MediaTypeText   = "text/plain"
	MediaTypePDF    = "application/pdf"
	MediaTypeDoc    = "application/msword"
	MediaTypeDocx   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mediaTypeBinary = "application/octet-stream"

	// DefaultMaxFileSize is the upload ceiling applied when none is configured.
	DefaultMaxFileSize int64 = 5 * 1024 * 1024
)

var extensionTypes = map[string]string{
	".txt":  MediaTypeText,
	".pdf":  MediaTypePDF,
	".doc":  MediaTypeDoc,
	".docx": MediaTypeDocx,
}

// Document is an uploaded resume before text extraction.
type Document struct {
	Data      []byte
	MediaType string
	FileName  string
	Size      int64
}

// NewDocument builds a document and resolves its media type. The declared type
// wins when it is one of the supported types, otherwise the file extension is
// consulted. An unknown type is kept as declared so Validate can report it.
func NewDocument(fileName, declaredType string, data []byte) *Document {
	return &Document{
		Data:      data,
		MediaType: DetectMediaType(fileName, declaredType),
		FileName:  strings.TrimSpace(fileName),
		Size:      int64(len(data)),
	}
}

// DetectMediaType normalizes declaredType and falls back to the extension of
// fileName when the declared type is missing or generic.
func DetectMediaType(fileName, declaredType string) string {
	declared := normalizeMediaType(declaredType)
	if IsSupported(declared) {
		return declared
	}

	if byExt, ok := extensionTypes[strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))]; ok {
		if declared == "" || declared == mediaTypeBinary {
			return byExt
		}
	}

	return declared
}

// IsSupported reports whether the media type can be extracted.
func IsSupported(mediaType string) bool {
	switch mediaType {
	case MediaTypeText, MediaTypePDF, MediaTypeDoc, MediaTypeDocx:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the media type requires a document parser.
func IsBinary(mediaType string) bool {
	return IsSupported(mediaType) && mediaType != MediaTypeText
}

// Validate checks the size ceiling and the media type. A non-positive maxSize
// falls back to DefaultMaxFileSize.
func (d *Document) Validate(maxSize int64) error {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	if d.Size > maxSize {
		return &FileTooLargeError{Size: d.Size, Limit: maxSize}
	}

	if !IsSupported(d.MediaType) {
		return &UnsupportedFormatError{FileName: d.FileName, MediaType: d.MediaType}
	}

	return nil
}

// Extension returns the canonical file extension for the document.
func (d *Document) Extension() string {
	if ext := strings.ToLower(filepath.Ext(d.FileName)); ext != "" {
		if _, ok := extensionTypes[ext]; ok {
			return ext
		}
	}

	for ext, mediaType := range extensionTypes {
		if mediaType == d.MediaType {
			return ext
		}
	}

	return ""
}

func normalizeMediaType(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	parsed, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(value)
	}

	return parsed
}
