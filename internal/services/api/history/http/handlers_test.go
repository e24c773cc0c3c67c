package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"shapeshift/internal/modkit/httpkit"
	pnet "shapeshift/internal/platform/net"
	phttp "shapeshift/internal/platform/net/http"
	"shapeshift/internal/services/api/history/domain"

	"github.com/go-chi/chi/v5"
)

type stubSvc struct {
	page int
	days int
}

func (s *stubSvc) Models(_ context.Context, _ string, page int) (domain.ModelsPage, error) {
	s.page = page
	return domain.ModelsPage{Models: []domain.ModelItem{}, Pagination: domain.Paginate(page, 0)}, nil
}

func (s *stubSvc) Transactions(_ context.Context, _ string, page int) (domain.TransactionsPage, error) {
	s.page = page
	return domain.TransactionsPage{Transactions: []domain.TxItem{{ID: "tx1"}}, Pagination: domain.Paginate(page, 1)}, nil
}

func (s *stubSvc) Activity(_ context.Context, _ string, days int) (domain.Activity, error) {
	s.days = days
	return domain.Activity{Days: days}, nil
}

func get(t *testing.T, s domain.ServicePort, who *pnet.Principal, path string) (int, map[string]any) {
	t.Helper()
	r := phttp.AdaptChi(chi.NewRouter())
	Register(r, s)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if who != nil {
		req = req.WithContext(pnet.WithPrincipal(req.Context(), *who))
	}
	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, req)
	var env httpkit.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	data, _ := env.Data.(map[string]any)
	return rec.Code, data
}

func TestModels(t *testing.T) {
	t.Parallel()
	s := &stubSvc{}
	code, data := get(t, s, &pnet.Principal{UserID: "u1"}, "/models?page=3")
	if code != http.StatusOK || s.page != 3 {
		t.Fatalf("code = %d page = %d", code, s.page)
	}
	if models, ok := data["models"].([]any); !ok || len(models) != 0 {
		t.Fatalf("models = %v", data["models"])
	}
	pg := data["pagination"].(map[string]any)
	if pg["currentPage"].(float64) != 3 || pg["totalPages"].(float64) != 1 || pg["hasMore"] != false {
		t.Fatalf("pagination = %v", pg)
	}

	if _, _ = get(t, s, &pnet.Principal{UserID: "u1"}, "/models?page=abc"); s.page != 1 {
		t.Fatalf("bad page parsed as %d", s.page)
	}
	if code, _ := get(t, s, nil, "/models"); code != http.StatusUnauthorized {
		t.Fatalf("anonymous = %d", code)
	}
}

func TestTransactions(t *testing.T) {
	t.Parallel()
	s := &stubSvc{}
	code, data := get(t, s, &pnet.Principal{UserID: "u1"}, "/transactions")
	if code != http.StatusOK || s.page != 1 || len(data["transactions"].([]any)) != 1 {
		t.Fatalf("code = %d data = %v", code, data)
	}
}

func TestActivityDays(t *testing.T) {
	t.Parallel()
	s := &stubSvc{}
	who := &pnet.Principal{UserID: "u1"}
	if get(t, s, who, "/activity"); s.days != 30 {
		t.Fatalf("default days = %d", s.days)
	}
	if get(t, s, who, "/activity?days=7"); s.days != 7 {
		t.Fatalf("days = %d", s.days)
	}
}
