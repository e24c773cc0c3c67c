package httpkit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	perr "shapeshift/internal/platform/errors"
	pnet "shapeshift/internal/platform/net"
	phttp "shapeshift/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

func newRouter() Router { return phttp.AdaptChi(chi.NewRouter()) }

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestJWT(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"Bearer abc":    true,
		"bearer abc":    true,
		"BEARER   abc ": true,
		"Bearer":        false,
		"Bearer   ":     false,
		"Basic abc":     false,
		"":              false,
	}
	for header, ok := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		raw, err := JWT(r)
		if ok && (err != nil || raw != "abc") {
			t.Fatalf("%q: raw=%q err=%v", header, raw, err)
		}
		if !ok && !perr.IsCode(err, perr.ErrorCodeUnauthorized) {
			t.Fatalf("%q: want unauthorized, got %v", header, err)
		}
	}
}

func TestPortParse(t *testing.T) {
	t.Parallel()
	p := NewPortFunc(func(tok string) (pnet.Principal, error) {
		if tok != "good" {
			return pnet.Principal{}, errors.New("signature mismatch")
		}
		return pnet.Principal{UserID: "u1", Scopes: []string{"credits:grant"}}, nil
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer good")
	who, err := p.Parse(r)
	if err != nil || who.UserID != "u1" {
		t.Fatalf("Parse = %+v, %v", who, err)
	}

	r.Header.Set("Authorization", "Bearer bad")
	_, err = p.Parse(r)
	if !perr.IsCode(err, perr.ErrorCodeUnauthorized) || perr.WireFrom(err).Message != "invalid bearer token" {
		t.Fatalf("bad token err = %v", err)
	}

	var nilPort *Port
	if _, err := nilPort.Parse(r); !perr.IsCode(err, perr.ErrorCodeUnauthorized) {
		t.Fatalf("nil port err = %v", err)
	}
}

func TestProtectedAndScope(t *testing.T) {
	t.Parallel()
	p := NewPortFunc(func(tok string) (pnet.Principal, error) {
		if tok == "admin" {
			return pnet.Principal{UserID: "ops", Scopes: []string{"credits:grant"}}, nil
		}
		return pnet.Principal{UserID: tok}, nil
	})
	r := newRouter()
	Get(r, "/open", func(*http.Request) (any, error) { return "hi", nil })
	Protected(r, p, func(pr Router) {
		Get(pr, "/me", func(req *http.Request) (any, error) {
			uid, err := User(req)
			return map[string]string{"user": uid}, err
		})
		pr.With(RequireScope("credits:grant")).Post("/grant", Call(func(*http.Request) (any, error) {
			return Created("granted"), nil
		}))
	})
	mux := r.Mux()

	do := func(method, path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	if rec := do(http.MethodGet, "/open", ""); rec.Code != http.StatusOK {
		t.Fatalf("open = %d", rec.Code)
	}
	if rec := do(http.MethodGet, "/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without token = %d", rec.Code)
	}
	rec := do(http.MethodGet, "/me", "u42")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"user":"u42"`) {
		t.Fatalf("me = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(http.MethodPost, "/grant", "u42"); rec.Code != http.StatusForbidden {
		t.Fatalf("grant without scope = %d", rec.Code)
	}
	rec = do(http.MethodPost, "/grant", "admin")
	if rec.Code != http.StatusCreated || decode(t, rec).Data != "granted" {
		t.Fatalf("grant = %d %s", rec.Code, rec.Body.String())
	}
}

func TestMountAPIV1AndCommonStack(t *testing.T) {
	t.Parallel()
	r := newRouter()
	MountAPIV1(r, CommonStack(StackOptions{}), func(api Router) {
		MountUnder(api, "/credits", nil, func(sub Router) {
			PostJSON(sub, "/echo", func(_ *http.Request, in struct {
				N int `json:"n" validate:"min=1"`
			}) (any, error) {
				return in.N, nil
			})
			Get(sub, "/boom", func(*http.Request) (any, error) { panic("boom") })
		})
	})
	mux := r.Mux()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/credits/echo", strings.NewReader(`{"n":3}`)))
	if rec.Code != http.StatusOK || decode(t, rec).RequestID == "" {
		t.Fatalf("echo = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/credits/echo", strings.NewReader(`{"n":0}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid echo = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/credits/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("panic = %d", rec.Code)
	}
}

func TestPrincipalMissing(t *testing.T) {
	t.Parallel()
	if _, err := Principal(httptest.NewRequest(http.MethodGet, "/", nil)); !perr.IsCode(err, perr.ErrorCodeUnauthorized) {
		t.Fatalf("err = %v", err)
	}
}
