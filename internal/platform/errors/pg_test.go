package errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgErr(code, constraint string) *pgconn.PgError {
	return &pgconn.PgError{Code: code, ConstraintName: constraint}
}

func TestDBErrorCode(t *testing.T) {
	t.Parallel()
	cases := []struct {
		code, constraint string
		want             ErrorCode
	}{
		{"23505", "", ErrorCodeDuplicateKey},
		{"23503", "", ErrorCodeInvalidArgument},
		{"23502", "", ErrorCodeValidation},
		{"23514", "", ErrorCodeValidation},
		{"23514", balanceConstraint, ErrorCodeInsufficientCredits},
		{"22P02", "", ErrorCodeInvalidArgument},
		{"40001", "", ErrorCodeDB},
		{"57P03", "", ErrorCodeUnavailable},
		{"XX000", "", ErrorCodeDB},
	}
	for _, c := range cases {
		got, ok := DBErrorCode(pgErr(c.code, c.constraint))
		if !ok || got != c.want {
			t.Fatalf("DBErrorCode(%s/%s) = %v ok=%v, want %v", c.code, c.constraint, got, ok, c.want)
		}
	}
	if _, ok := DBErrorCode(stderrs.New("plain")); ok {
		t.Fatalf("plain error should not map")
	}
}

func TestFromPostgres(t *testing.T) {
	t.Parallel()
	if FromPostgres(nil, "x") != nil || FromPostgresf(nil, "x %d", 1) != nil {
		t.Fatalf("nil should pass through")
	}
	err := FromPostgresf(fmt.Errorf("exec: %w", pgErr("23505", "credit_transactions_payment_ref_key")), "topup %s", "pay_1")
	if !IsDuplicateKey(err) || CodeOf(err) != ErrorCodeDuplicateKey {
		t.Fatalf("code = %v", CodeOf(err))
	}
	if !IsConstraint(err, "credit_transactions_payment_ref_key") {
		t.Fatalf("constraint name lost")
	}
	if CodeOf(FromPostgres(stderrs.New("conn reset"), "q")) != ErrorCodeDB {
		t.Fatalf("foreign errors default to DB")
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	for _, code := range []string{"40001", "40P01", "55P03"} {
		if !IsRetryable(pgErr(code, "")) {
			t.Fatalf("%s should be retryable", code)
		}
	}
	if IsRetryable(pgErr("23505", "")) {
		t.Fatalf("unique violation is final")
	}
	if !IsRetryable(stderrs.New("ERROR: deadlock detected")) {
		t.Fatalf("text fallback missed deadlock")
	}
	if IsRetryable(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)) {
		t.Fatalf("deadline exceeded must not be retried here")
	}
	if IsRetryable(nil) {
		t.Fatalf("nil is not retryable")
	}
}
