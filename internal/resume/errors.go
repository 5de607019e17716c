package resume

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported resume format")
	ErrFileTooLarge      = errors.New("resume file is too large")
)

// UnsupportedFormatError is returned for documents that are neither plain
// text, PDF nor a word-processing format.
type UnsupportedFormatError struct {
	FileName  string
	MediaType string
}

func (e *UnsupportedFormatError) Error() string {
	switch {
	case e.MediaType != "" && e.FileName != "":
		return fmt.Sprintf("%s: %q (%s)", ErrUnsupportedFormat, e.FileName, e.MediaType)
	case e.MediaType != "":
		return fmt.Sprintf("%s: %s", ErrUnsupportedFormat, e.MediaType)
	case e.FileName != "":
		return fmt.Sprintf("%s: %q", ErrUnsupportedFormat, e.FileName)
	default:
		return ErrUnsupportedFormat.Error()
	}
}

func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// FileTooLargeError is returned when a document exceeds the upload ceiling.
type FileTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s: %d bytes exceeds the %d bytes limit", ErrFileTooLarge, e.Size, e.Limit)
}

func (e *FileTooLargeError) Unwrap() error {
	return ErrFileTooLarge
}
