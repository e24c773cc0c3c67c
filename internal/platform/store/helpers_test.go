package store

import (
	"context"
	"errors"
	"testing"

	perr "shapeshift/internal/platform/errors"
)

type fakeTag int64

func (t fakeTag) String() string      { return "UPDATE" }
func (t fakeTag) RowsAffected() int64 { return int64(t) }

type fakeRows struct {
	data [][]any
	i    int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dst ...any) error {
	row := r.data[r.i-1]
	for i := range dst {
		switch p := dst[i].(type) {
		case *int:
			*p = row[i].(int)
		case *string:
			*p = row[i].(string)
		}
	}
	return nil
}

func (r *fakeRows) Err() error        { return r.err }
func (r *fakeRows) Close()            {}
func (r *fakeRows) Columns() []string { return nil }

type fakeQ struct {
	affected int64
	rows     [][]any
	err      error
}

func (q *fakeQ) Exec(context.Context, string, ...any) (CommandTag, error) {
	return fakeTag(q.affected), q.err
}

func (q *fakeQ) Query(context.Context, string, ...any) (Rows, error) {
	if q.err != nil {
		return nil, q.err
	}
	return &fakeRows{data: q.rows}, nil
}

func (q *fakeQ) QueryRow(ctx context.Context, sql string, args ...any) Row {
	rs, _ := q.Query(ctx, sql, args...)
	return rowFunc(func(dst ...any) error {
		if q.err != nil {
			return q.err
		}
		if !rs.Next() {
			return errors.New("no rows")
		}
		return rs.Scan(dst...)
	})
}

type rowFunc func(dst ...any) error

func (f rowFunc) Scan(dst ...any) error { return f(dst...) }

func scanPair(r Row) (struct {
	ID   int
	Name string
}, error) {
	var v struct {
		ID   int
		Name string
	}
	err := r.Scan(&v.ID, &v.Name)
	return v, err
}

func TestExecOne(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if err := ExecOne(ctx, &fakeQ{affected: 1}, "UPDATE"); err != nil {
		t.Fatalf("one row: %v", err)
	}
	if err := ExecOne(ctx, &fakeQ{affected: 0}, "UPDATE"); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("zero rows: %v", err)
	}
	if err := ExecOne(ctx, &fakeQ{affected: 3}, "UPDATE"); err == nil {
		t.Fatalf("three rows should fail")
	}
	boom := errors.New("boom")
	if err := ExecOne(ctx, &fakeQ{err: boom}, "UPDATE"); !errors.Is(err, boom) {
		t.Fatalf("exec error lost: %v", err)
	}
}

func TestScalarOneMany(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	n, err := Scalar[int](ctx, &fakeQ{rows: [][]any{{25}}}, "SELECT credits")
	if err != nil || n != 25 {
		t.Fatalf("Scalar = %d, %v", n, err)
	}

	one, err := One(ctx, &fakeQ{rows: [][]any{{1, "a"}}}, scanPair, "SELECT")
	if err != nil || one.ID != 1 || one.Name != "a" {
		t.Fatalf("One = %+v, %v", one, err)
	}
	if _, err := One(ctx, &fakeQ{}, scanPair, "SELECT"); !errors.Is(err, perr.ErrNotFound) {
		t.Fatalf("One on empty = %v", err)
	}
	if _, err := One(ctx, &fakeQ{rows: [][]any{{1, "a"}, {2, "b"}}}, scanPair, "SELECT"); err == nil {
		t.Fatalf("One on two rows should fail")
	}

	many, err := Many(ctx, &fakeQ{rows: [][]any{{1, "a"}, {2, "b"}}}, scanPair, "SELECT")
	if err != nil || len(many) != 2 || many[1].Name != "b" {
		t.Fatalf("Many = %+v, %v", many, err)
	}
}
