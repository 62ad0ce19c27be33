// Package upload converts submitted image files into self-contained data URLs.
package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit caps a single image.
const DefaultLimit int64 = 5 << 20

var (
	// ErrNotImage is returned for payloads that do not sniff as an image.
	ErrNotImage = errors.New("upload: file is not an image")
	// ErrTooLarge is returned for payloads over the limit.
	ErrTooLarge = errors.New("upload: file too large")
)

// EncodeDataURL reads r fully and returns "data:<mime>;base64,<payload>".
// A non-positive limit means DefaultLimit.
func EncodeDataURL(r io.Reader, limit int64) (string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("upload: read: %w", err)
	}
	if int64(len(data)) > limit {
		return "", ErrTooLarge
	}
	if len(data) == 0 {
		return "", nil
	}

	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", ErrNotImage
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// FieldError names the form field whose file failed to convert.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("upload: field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Attached names the non-empty file of every named field, keyed by field.
// Fields without one map to "". Nothing is read, so it is cheap to call
// before EncodeFields.
func Attached(form *multipart.Form, fields ...string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, field := range fields {
		out[field] = ""
		if form == nil || len(form.File[field]) == 0 {
			continue
		}
		header := form.File[field][0]
		if header.Size <= 0 {
			continue
		}
		name := header.Filename
		if name == "" {
			name = field
		}
		out[field] = name
	}
	return out
}

// EncodeFields converts the first file of every named field concurrently and
// returns once all conversions finished. Fields without a file map to "".
func EncodeFields(ctx context.Context, form *multipart.Form, limit int64, fields ...string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	results := make([]string, len(fields))

	g, ctx := errgroup.WithContext(ctx)
	for i, field := range fields {
		var header *multipart.FileHeader
		if form != nil && len(form.File[field]) > 0 {
			header = form.File[field][0]
		}
		if header == nil {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			encoded, err := encodeHeader(header, limit)
			if err != nil {
				return &FieldError{Field: field, Err: err}
			}
			results[i] = encoded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, field := range fields {
		out[field] = results[i]
	}
	return out, nil
}

func encodeHeader(header *multipart.FileHeader, limit int64) (string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if header.Size > limit {
		return "", ErrTooLarge
	}
	f, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("upload: open: %w", err)
	}
	defer f.Close()
	return EncodeDataURL(f, limit)
}
