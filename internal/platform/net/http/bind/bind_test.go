package bind

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	perr "shapeshift/internal/platform/errors"
)

type textIn struct {
	Prompt   string `json:"prompt" validate:"notblank,max=20"`
	ArtStyle string `json:"art_style" validate:"omitempty,oneof=realistic sculpture"`
	Seed     int    `json:"-" validate:"min=0"`
}

func post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		body      string
		wantCode  perr.ErrorCode
		wantField string
		wantMsg   string
	}{
		{name: "ok", body: `{"prompt":"a red fox","art_style":"sculpture"}`},
		{name: "empty", body: "  ", wantCode: perr.ErrorCodeJSON},
		{name: "malformed", body: `{"prompt":`, wantCode: perr.ErrorCodeJSON},
		{name: "unknown field", body: `{"prompt":"x","seed":1}`, wantCode: perr.ErrorCodeJSON},
		{name: "trailing", body: `{"prompt":"x"} {}`, wantCode: perr.ErrorCodeJSON},
		{name: "blank prompt", body: `{"prompt":"   "}`, wantCode: perr.ErrorCodeValidation, wantField: "prompt", wantMsg: "prompt must not be blank"},
		{name: "too long", body: `{"prompt":"` + strings.Repeat("x", 21) + `"}`, wantCode: perr.ErrorCodeValidation, wantField: "prompt", wantMsg: "prompt must be at most 20"},
		{name: "bad style", body: `{"prompt":"x","art_style":"anime"}`, wantCode: perr.ErrorCodeValidation, wantField: "art_style", wantMsg: "art_style must be one of [realistic sculpture]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseJSON[textIn](post(tc.body))
			if tc.wantCode == 0 && tc.wantField == "" {
				if err != nil || got.Prompt != "a red fox" {
					t.Fatalf("got %+v, %v", got, err)
				}
				return
			}
			e, ok := perr.As(err)
			if !ok || e.Code() != tc.wantCode {
				t.Fatalf("err = %v", err)
			}
			if tc.wantField != "" && e.Field() != tc.wantField {
				t.Fatalf("field = %q", e.Field())
			}
			if tc.wantMsg != "" && e.Message() != tc.wantMsg {
				t.Fatalf("message = %q", e.Message())
			}
		})
	}
}

func TestParseJSONLimitsAndEmptyGet(t *testing.T) {
	t.Parallel()
	_, err := ParseJSON[textIn](post(`{"prompt":"`+strings.Repeat("x", 64)+`"}`), JSONOptions{MaxBytes: 16})
	if !perr.IsCode(err, perr.ErrorCodeJSON) {
		t.Fatalf("oversized body: %v", err)
	}
	get := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if _, err := ParseJSON[struct{}](get); err != nil {
		t.Fatalf("empty GET body: %v", err)
	}
}

func multipartReq(t *testing.T, field, filename, ctype string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if ctype != "" {
		h.Set("Content-Type", ctype)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()
	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000IHDR")

func TestParseUpload(t *testing.T) {
	t.Parallel()
	opts := UploadOptions{Field: "image", MaxBytes: 1 << 10, Allowed: []string{"image/jpeg", "image/jpg", "image/png"}}

	up, err := ParseUpload(multipartReq(t, "image", "chair.png", "", pngHeader), opts)
	if err != nil || up.ContentType != "image/png" || up.Filename != "chair.png" {
		t.Fatalf("sniffed upload = %+v, %v", up, err)
	}

	cases := []struct {
		name  string
		req   *http.Request
		field string
	}{
		{"wrong field", multipartReq(t, "file", "a.png", "image/png", pngHeader), "image"},
		{"wrong type", multipartReq(t, "image", "a.gif", "image/gif", []byte("GIF89a")), "image"},
		{"too large", multipartReq(t, "image", "a.png", "image/png", bytes.Repeat([]byte{1}, 2<<10)), "image"},
		{"empty", multipartReq(t, "image", "a.png", "image/png", nil), "image"},
	}
	for _, tc := range cases {
		_, err := ParseUpload(tc.req, opts)
		e, ok := perr.As(err)
		if !ok || e.Code() != perr.ErrorCodeValidation || e.Field() != tc.field {
			t.Fatalf("%s: err = %v", tc.name, err)
		}
	}
}

func TestQueryPage(t *testing.T) {
	t.Parallel()
	cases := map[string]int{"": 1, "?page=3": 3, "?page=0": 1, "?page=-2": 1, "?page=abc": 1}
	for q, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/history/models"+q, nil)
		if got := QueryPage(r, "page"); got != want {
			t.Fatalf("QueryPage(%q) = %d, want %d", q, got, want)
		}
	}
}
