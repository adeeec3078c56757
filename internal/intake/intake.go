package intake

import (
	"io"

	"github.com/botdash/botdash/pkg/metrics"
)

// MaxFileSize is the largest accepted knowledge file (10 MiB).
const MaxFileSize int64 = 10 * 1024 * 1024

const (
	MediaTypePDF  = "application/pdf"
	MediaTypeText = "text/plain"
)

// File is one candidate knowledge file of a provisioning attempt. It only
// lives for the duration of that attempt.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// RejectCode classifies why a file was rejected.
type RejectCode string

const (
	RejectType RejectCode = "type"
	RejectSize RejectCode = "size"
)

// Rejection describes one file excluded from the accepted set.
type Rejection struct {
	File   File
	Code   RejectCode
	Title  string
	Reason string
}

// Message is the user-facing notification text, e.g.
// "notes.docx must be a PDF or TXT file".
func (r Rejection) Message() string {
	return r.File.Name + " " + r.Reason
}

// Validate filters files down to those with a PDF or plain-text media type
// and a size of at most MaxFileSize, preserving input order. notify, when
// non-nil, is called once per rejected file in input order. Empty input
// yields an empty accepted set.
func Validate(files []File, notify func(Rejection)) ([]File, []Rejection) {
	accepted := make([]File, 0, len(files))
	var rejected []Rejection
	for _, f := range files {
		r, ok := check(f)
		if ok {
			accepted = append(accepted, f)
			continue
		}
		metrics.IntakeRejections.WithLabelValues(string(r.Code)).Inc()
		rejected = append(rejected, r)
		if notify != nil {
			notify(r)
		}
	}
	return accepted, rejected
}

func check(f File) (Rejection, bool) {
	if !allowedType(f.ContentType) {
		return Rejection{File: f, Code: RejectType, Title: "Invalid file type", Reason: "must be a PDF or TXT file"}, false
	}
	if f.Size > MaxFileSize {
		return Rejection{File: f, Code: RejectSize, Title: "File too large", Reason: "must be less than 10MB"}, false
	}
	return Rejection{}, true
}

// allowedType requires the declared media type to be exactly one of the two
// accepted values; parameters or different casing are a different type.
func allowedType(declared string) bool {
	return declared == MediaTypePDF || declared == MediaTypeText
}
