package bind

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"

	perr "shapeshift/internal/platform/errors"
)

// Upload is a single file read from a multipart form
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadOptions limits what ParseUpload accepts
type UploadOptions struct {
	Field    string
	MaxBytes int64
	Allowed  []string // content types; empty allows any
}

// ParseUpload reads one file from a multipart form
// The declared content type is trusted when present and sniffed otherwise
func ParseUpload(r *http.Request, o UploadOptions) (Upload, error) {
	if o.MaxBytes <= 0 {
		o.MaxBytes = 10 << 20
	}
	// room for the multipart framing around the file
	r.Body = http.MaxBytesReader(nil, r.Body, o.MaxBytes+64<<10)
	if err := r.ParseMultipartForm(o.MaxBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return Upload{}, perr.WithField(perr.Validationf("file exceeds %s", humanBytes(o.MaxBytes)), o.Field)
		}
		return Upload{}, perr.Wrap(err, perr.ErrorCodeValidation, "invalid multipart form")
	}
	defer r.MultipartForm.RemoveAll()

	f, hdr, err := r.FormFile(o.Field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return Upload{}, perr.WithField(perr.Validationf("no file uploaded"), o.Field)
		}
		return Upload{}, perr.Wrap(err, perr.ErrorCodeValidation, "read upload")
	}
	defer f.Close()
	return readUpload(f, hdr, o)
}

func readUpload(f multipart.File, hdr *multipart.FileHeader, o UploadOptions) (Upload, error) {
	if hdr.Size > o.MaxBytes {
		return Upload{}, perr.WithField(perr.Validationf("file exceeds %s", humanBytes(o.MaxBytes)), o.Field)
	}
	data, err := io.ReadAll(io.LimitReader(f, o.MaxBytes+1))
	if err != nil {
		return Upload{}, perr.Wrap(err, perr.ErrorCodeValidation, "read upload")
	}
	if int64(len(data)) > o.MaxBytes {
		return Upload{}, perr.WithField(perr.Validationf("file exceeds %s", humanBytes(o.MaxBytes)), o.Field)
	}
	if len(data) == 0 {
		return Upload{}, perr.WithField(perr.Validationf("file is empty"), o.Field)
	}

	ct := strings.ToLower(strings.TrimSpace(hdr.Header.Get("Content-Type")))
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	if mt, _, ok := strings.Cut(ct, ";"); ok {
		ct = strings.TrimSpace(mt)
	}
	if len(o.Allowed) > 0 && !slices.Contains(o.Allowed, ct) {
		return Upload{}, perr.WithField(perr.Validationf("unsupported file type %s", ct), o.Field)
	}
	return Upload{Filename: hdr.Filename, ContentType: ct, Data: data}, nil
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return strconv.FormatInt(n>>20, 10) + "MB"
	case n >= 1<<10 && n%(1<<10) == 0:
		return strconv.FormatInt(n>>10, 10) + "KB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}

// QueryPage reads a 1-based page number; anything missing or invalid is page 1
func QueryPage(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
