package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shapeshift/internal/modkit/httpkit"
	perr "shapeshift/internal/platform/errors"
	pnet "shapeshift/internal/platform/net"
	phttp "shapeshift/internal/platform/net/http"
	"shapeshift/internal/services/credits/domain"

	"github.com/go-chi/chi/v5"
)

type stubLedger struct {
	domain.LedgerPort
	topups []domain.TopUpRequest
}

func (s *stubLedger) Balance(_ context.Context, uid string) (domain.Account, error) {
	return domain.Account{UserID: uid, Credits: 25, Subscription: domain.Subscription{Type: domain.PlanNone, Status: domain.SubActive}}, nil
}

func (s *stubLedger) TopUp(_ context.Context, req domain.TopUpRequest) (domain.Account, error) {
	if req.PaymentRef == "dup" {
		return domain.Account{}, perr.Conflictf("payment dup already recorded")
	}
	s.topups = append(s.topups, req)
	return domain.Account{UserID: req.UserID, Credits: 25 + req.Credits}, nil
}

func serve(t *testing.T, l domain.LedgerPort, who *pnet.Principal, method, path, body string) (int, httpkit.Envelope) {
	t.Helper()
	r := phttp.AdaptChi(chi.NewRouter())
	Register(r, l)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if who != nil {
		req = req.WithContext(pnet.WithPrincipal(req.Context(), *who))
	}
	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, req)
	var env httpkit.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env
}

func TestBalance(t *testing.T) {
	t.Parallel()
	l := &stubLedger{}
	code, env := serve(t, l, &pnet.Principal{UserID: "u1"}, http.MethodGet, "/", "")
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	data := env.Data.(map[string]any)
	if data["user_id"] != "u1" || data["credits"].(float64) != 25 {
		t.Fatalf("data = %v", data)
	}

	code, env = serve(t, l, nil, http.MethodGet, "/", "")
	if code != http.StatusUnauthorized || env.Code != perr.ErrorCodeUnauthorized {
		t.Fatalf("anonymous = %d %+v", code, env)
	}
}

func TestTopUp(t *testing.T) {
	t.Parallel()
	admin := &pnet.Principal{UserID: "billing", Scopes: []string{GrantScope}}
	l := &stubLedger{}

	body := `{"user_id":"u1","credits":100,"amount":9.99,"payment_ref":"pi_1","type":"subscription","plan":"pro"}`
	code, env := serve(t, l, admin, http.MethodPost, "/topups", body)
	if code != http.StatusCreated {
		t.Fatalf("code = %d %+v", code, env)
	}
	if len(l.topups) != 1 || l.topups[0].Plan != domain.PlanPro || l.topups[0].Type != domain.TxSubscription {
		t.Fatalf("topups = %+v", l.topups)
	}

	code, _ = serve(t, l, &pnet.Principal{UserID: "u1"}, http.MethodPost, "/topups", body)
	if code != http.StatusForbidden {
		t.Fatalf("no scope = %d", code)
	}

	code, env = serve(t, l, admin, http.MethodPost, "/topups", `{"user_id":"u1","credits":0,"payment_ref":"pi_2"}`)
	if code != http.StatusBadRequest || env.Field != "credits" {
		t.Fatalf("zero credits = %d %+v", code, env)
	}

	code, _ = serve(t, l, admin, http.MethodPost, "/topups", `{"user_id":"u1","credits":5,"payment_ref":"pi_3","plan":"gold"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("bad plan = %d", code)
	}

	code, env = serve(t, l, admin, http.MethodPost, "/topups", `{"user_id":"u1","credits":5,"payment_ref":"dup"}`)
	if code != http.StatusConflict || env.Code != perr.ErrorCodeConflict {
		t.Fatalf("dup = %d %+v", code, env)
	}
}
