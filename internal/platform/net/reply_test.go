package net

import (
	"net/http"
	"testing"

	perr "shapeshift/internal/platform/errors"
)

func TestErrorEnvelope(t *testing.T) {
	t.Parallel()
	status, w := Error(perr.Unauthorizedf("token expired"), "req-1")
	if status != http.StatusUnauthorized || w.StatusCode != status {
		t.Fatalf("status = %d", status)
	}
	if w.Code != perr.ErrorCodeUnauthorized || w.Error != "token expired" || w.RequestID != "req-1" {
		t.Fatalf("wire = %+v", w)
	}
	if w.Status != "Unauthorized" {
		t.Fatalf("status text = %q", w.Status)
	}
}
