// Package repo provides the credit ledger repository
package repo

import (
	"context"
	"time"

	"shapeshift/internal/core/taskstate"
	"shapeshift/internal/modkit/repokit"
	perr "shapeshift/internal/platform/errors"
	"shapeshift/internal/platform/store"
	str "shapeshift/internal/platform/strings"
	"shapeshift/internal/services/credits/domain"

	"github.com/google/uuid"
)

// Storage is the ledger persistence surface
type Storage interface {
	EnsureAccount(ctx context.Context, userID string, grant int) error
	Account(ctx context.Context, userID string) (domain.Account, error)
	// LockAccount selects the account FOR UPDATE
	LockAccount(ctx context.Context, userID string) (domain.Account, error)

	// Debit subtracts n when the balance covers it; ErrNotFound when it does not
	Debit(ctx context.Context, userID string, n int) (int, error)
	Credit(ctx context.Context, userID string, n int) (int, error)
	SetSubscription(ctx context.Context, userID string, t domain.SubscriptionType, s domain.SubscriptionStatus) error

	InsertTx(ctx context.Context, tx domain.Transaction) error
	// InsertRefund reports false when the task already has a refund row
	InsertRefund(ctx context.Context, tx domain.Transaction) (bool, error)
	HasRefund(ctx context.Context, taskID string) (bool, error)
	SettleUsage(ctx context.Context, id string, d domain.UsageDetails) error
	// FailUsage marks a pending usage row failed and returns its owner and the credits it held
	FailUsage(ctx context.Context, id, reason string) (userID string, credits int, err error)

	ListTx(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error)
	CountTx(ctx context.Context, userID string) (int, error)
}

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG returns the Postgres binder
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

const accountCols = `user_id, credits, subscription_type, subscription_status, created_at, updated_at`

func scanAccount(r store.Row) (domain.Account, error) {
	var a domain.Account
	var st, ss string
	err := r.Scan(&a.UserID, &a.Credits, &st, &ss, &a.CreatedAt, &a.UpdatedAt)
	a.Subscription = domain.Subscription{Type: domain.SubscriptionType(st), Status: domain.SubscriptionStatus(ss)}
	return a, err
}

func (s *pg) EnsureAccount(ctx context.Context, userID string, grant int) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO credit_accounts (user_id, credits) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`, userID, grant)
	return err
}

func (s *pg) Account(ctx context.Context, userID string) (domain.Account, error) {
	return store.One(ctx, s.q, scanAccount,
		`SELECT `+accountCols+` FROM credit_accounts WHERE user_id = $1`, userID)
}

func (s *pg) LockAccount(ctx context.Context, userID string) (domain.Account, error) {
	return store.One(ctx, s.q, scanAccount,
		`SELECT `+accountCols+` FROM credit_accounts WHERE user_id = $1 FOR UPDATE`, userID)
}

func scanInt(r store.Row) (int, error) {
	var n int
	err := r.Scan(&n)
	return n, err
}

func (s *pg) Debit(ctx context.Context, userID string, n int) (int, error) {
	return store.One(ctx, s.q, scanInt, `
		UPDATE credit_accounts
		SET credits = credits - $2, updated_at = now()
		WHERE user_id = $1 AND credits >= $2
		RETURNING credits`, userID, n)
}

func (s *pg) Credit(ctx context.Context, userID string, n int) (int, error) {
	return store.One(ctx, s.q, scanInt, `
		UPDATE credit_accounts
		SET credits = credits + $2, updated_at = now()
		WHERE user_id = $1
		RETURNING credits`, userID, n)
}

func (s *pg) SetSubscription(ctx context.Context, userID string, t domain.SubscriptionType, st domain.SubscriptionStatus) error {
	return store.ExecOne(ctx, s.q, `
		UPDATE credit_accounts
		SET subscription_type = $2, subscription_status = $3, updated_at = now()
		WHERE user_id = $1`, userID, string(t), string(st))
}

func parseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, perr.InvalidArgf("invalid transaction id %q", id)
	}
	return u, nil
}

const insertTx = `
	INSERT INTO credit_transactions (
		id, user_id, type, amount, credits, payment_ref, model_type, task_id,
		prompt, image_url, model_url, description, status, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`

func txArgs(tx domain.Transaction) ([]any, error) {
	id, err := parseID(tx.ID)
	if err != nil {
		return nil, err
	}
	at := tx.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return []any{
		id, tx.UserID, string(tx.Type), tx.Amount, tx.Credits,
		str.SQLNull(tx.PaymentRef), str.SQLNull(string(tx.ModelType)), str.SQLNull(tx.TaskID),
		str.SQLNull(tx.Prompt), str.SQLNull(tx.ImageURL), str.SQLNull(tx.ModelURL),
		str.SQLNull(tx.Description), string(tx.Status), at,
	}, nil
}

func (s *pg) InsertTx(ctx context.Context, tx domain.Transaction) error {
	args, err := txArgs(tx)
	if err != nil {
		return err
	}
	_, err = s.q.Exec(ctx, insertTx, args...)
	return err
}

func (s *pg) InsertRefund(ctx context.Context, tx domain.Transaction) (bool, error) {
	args, err := txArgs(tx)
	if err != nil {
		return false, err
	}
	tag, err := s.q.Exec(ctx, insertTx+`
		ON CONFLICT (task_id) WHERE type = 'refund' DO NOTHING`, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *pg) HasRefund(ctx context.Context, taskID string) (bool, error) {
	return store.Scalar[bool](ctx, s.q,
		`SELECT EXISTS (SELECT 1 FROM credit_transactions WHERE task_id = $1 AND type = 'refund')`, taskID)
}

func (s *pg) SettleUsage(ctx context.Context, id string, d domain.UsageDetails) error {
	u, err := parseID(id)
	if err != nil {
		return err
	}
	return store.ExecOne(ctx, s.q, `
		UPDATE credit_transactions
		SET status    = 'success',
		    task_id   = $2,
		    prompt    = COALESCE($3, prompt),
		    image_url = COALESCE($4, image_url),
		    model_url = COALESCE($5, model_url),
		    updated_at = now()
		WHERE id = $1 AND type = 'usage' AND status = 'pending'`,
		u, d.TaskID, str.SQLNull(d.Prompt), str.SQLNull(d.ImageURL), str.SQLNull(d.ModelURL))
}

type failed struct {
	user    string
	credits int
}

func (s *pg) FailUsage(ctx context.Context, id, reason string) (string, int, error) {
	u, err := parseID(id)
	if err != nil {
		return "", 0, err
	}
	f, err := store.One(ctx, s.q, func(r store.Row) (failed, error) {
		var f failed
		err := r.Scan(&f.user, &f.credits)
		return f, err
	}, `
		UPDATE credit_transactions
		SET status = 'failed',
		    description = COALESCE(description, '') || CASE WHEN $2 = '' THEN '' ELSE ' (' || $2 || ')' END,
		    updated_at = now()
		WHERE id = $1 AND type = 'usage' AND status = 'pending'
		RETURNING user_id, -credits`, u, reason)
	return f.user, f.credits, err
}

func scanTx(r store.Row) (domain.Transaction, error) {
	var (
		t                                         domain.Transaction
		typ, status                               string
		ref, mt, task, prompt, image, model, desc *string
	)
	err := r.Scan(&t.ID, &t.UserID, &typ, &t.Amount, &t.Credits, &ref, &mt, &task,
		&prompt, &image, &model, &desc, &status, &t.CreatedAt)
	t.Type, t.Status = domain.TxType(typ), domain.TxStatus(status)
	t.PaymentRef, t.ModelType, t.TaskID = str.Deref(ref), taskstate.Kind(str.Deref(mt)), str.Deref(task)
	t.Prompt, t.ImageURL, t.ModelURL, t.Description = str.Deref(prompt), str.Deref(image), str.Deref(model), str.Deref(desc)
	return t, err
}

func (s *pg) ListTx(ctx context.Context, userID string, limit, offset int) ([]domain.Transaction, error) {
	return store.Many(ctx, s.q, scanTx, `
		SELECT id::text, user_id, type, amount::float8, credits, payment_ref, model_type, task_id,
		       prompt, image_url, model_url, description, status, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
}

func (s *pg) CountTx(ctx context.Context, userID string) (int, error) {
	return store.Scalar[int](ctx, s.q, `SELECT count(*) FROM credit_transactions WHERE user_id = $1`, userID)
}
