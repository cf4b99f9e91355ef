package httpclient

import (
	"io"
	"os"
	"sync"
)

// FormField is a plain text multipart field.
type FormField struct {
	Name  string
	Value string
}

// FormFile is a file part of a multipart body.
type FormFile struct {
	Field       string
	FileName    string
	ContentType string
	Reader      io.Reader
	// Size is the byte length of Reader, or 0 when unknown.
	Size int64
}

// FormData is an ordered multipart/form-data payload.
type FormData struct {
	Fields []FormField
	Files  []FormFile
}

// NewFormData returns an empty payload.
func NewFormData() *FormData {
	return &FormData{}
}

// Append adds a text field.
func (f *FormData) Append(name, value string) *FormData {
	f.Fields = append(f.Fields, FormField{Name: name, Value: value})
	return f
}

// AppendFile adds a file part. The size is detected for readers that expose it
// (bytes.Reader, strings.Reader, bytes.Buffer, *os.File).
func (f *FormData) AppendFile(field, fileName string, r io.Reader) *FormData {
	f.Files = append(f.Files, FormFile{
		Field:    field,
		FileName: fileName,
		Reader:   r,
		Size:     readerSize(r),
	})
	return f
}

// TotalSize is the sum of all file sizes, or 0 if any file size is unknown.
func (f *FormData) TotalSize() int64 {
	if f == nil {
		return 0
	}
	var total int64
	for _, file := range f.Files {
		if file.Size <= 0 {
			return 0
		}
		total += file.Size
	}
	return total
}

func readerSize(r io.Reader) int64 {
	switch v := r.(type) {
	case interface{ Len() int }:
		return int64(v.Len())
	case *os.File:
		info, err := v.Stat()
		if err != nil || !info.Mode().IsRegular() {
			return 0
		}
		return info.Size()
	}
	return 0
}

// progressTracker aggregates bytes read across every file part of one upload.
type progressTracker struct {
	mu     sync.Mutex
	loaded int64
	total  int64
	fn     ProgressFunc
}

func (p *progressTracker) add(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	p.loaded += int64(n)
	loaded, total := p.loaded, p.total
	p.mu.Unlock()
	p.fn(loaded, total)
}

type progressReader struct {
	r       io.Reader
	tracker *progressTracker
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	pr.tracker.add(n)
	return n, err
}

// withProgress wraps every file reader so reads are reported to fn. It returns the
// original payload untouched when fn is nil.
func (f *FormData) withProgress(fn ProgressFunc) *FormData {
	if f == nil || fn == nil {
		return f
	}
	tracker := &progressTracker{total: f.TotalSize(), fn: fn}
	out := &FormData{
		Fields: append([]FormField(nil), f.Fields...),
		Files:  make([]FormFile, len(f.Files)),
	}
	for i, file := range f.Files {
		file.Reader = &progressReader{r: file.Reader, tracker: tracker}
		out.Files[i] = file
	}
	return out
}
