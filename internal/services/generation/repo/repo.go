// Package repo provides the generation task repository
package repo

import (
	"context"
	"encoding/json"
	"time"

	"shapeshift/internal/core/taskstate"
	"shapeshift/internal/modkit/repokit"
	"shapeshift/internal/platform/store"
	str "shapeshift/internal/platform/strings"
	"shapeshift/internal/services/generation/domain"

	"github.com/google/uuid"
)

// Storage is the task persistence surface
type Storage interface {
	Insert(ctx context.Context, t domain.Task) error
	// ForUser returns ErrNotFound when the task is missing or owned by someone else
	ForUser(ctx context.Context, userID, taskID string) (domain.Task, error)

	// Complete and Fail only move PROCESSING rows; they report whether the row moved
	Complete(ctx context.Context, taskID string, r domain.Result) (bool, error)
	// Fail leaves refund_due set when the task charged credits
	Fail(ctx context.Context, taskID, reason string) (bool, error)
	MarkConfirmed(ctx context.Context, taskID string) error
	MarkRefunded(ctx context.Context, taskID string) error
	Progress(ctx context.Context, taskID string, progress int, thumbnail string) error
	// Reschedule records a poll and releases the lease
	Reschedule(ctx context.Context, taskID string, attempts int, next time.Time) error

	// Lease claims due PROCESSING tasks and tasks still owing a ledger write for workerID
	Lease(ctx context.Context, workerID string, limit int, leaseFor time.Duration) ([]domain.Task, error)

	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Task, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG returns the Postgres binder
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

const taskCols = `task_id, user_id, kind, status, progress,
	COALESCE(prompt, ''), COALESCE(negative_prompt, ''), COALESCE(art_style, ''), COALESCE(thumbnail_url, ''),
	COALESCE(model_glb, ''), COALESCE(model_obj, ''), COALESCE(model_fbx, ''), COALESCE(model_usdz, ''),
	texture_urls::text, COALESCE(task_error, ''), credits_charged, COALESCE(reservation_id::text, ''),
	confirm_due, refund_due, poll_attempts, next_poll_at, created_at, updated_at, completed_at`

func scanTask(r store.Row) (domain.Task, error) {
	var t domain.Task
	var kind, status, textures string
	err := r.Scan(
		&t.ID, &t.UserID, &kind, &status, &t.Progress,
		&t.Prompt, &t.NegativePrompt, &t.ArtStyle, &t.ThumbnailURL,
		&t.ModelURLs.GLB, &t.ModelURLs.OBJ, &t.ModelURLs.FBX, &t.ModelURLs.USDZ,
		&textures, &t.TaskError, &t.CreditsCharged, &t.ReservationID,
		&t.ConfirmDue, &t.RefundDue, &t.PollAttempts, &t.NextPollAt, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt,
	)
	if err != nil {
		return t, err
	}
	t.Kind = taskstate.Kind(kind)
	t.Status = taskstate.Status(status)
	if textures != "" && textures != "[]" {
		if err := json.Unmarshal([]byte(textures), &t.TextureURLs); err != nil {
			return t, err
		}
	}
	return t, nil
}

func texturesJSON(ts []taskstate.TextureURLs) (string, error) {
	if len(ts) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(ts)
	return string(b), err
}

func reservationArg(id string) any {
	u, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	return u
}

func (s *pg) Insert(ctx context.Context, t domain.Task) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO generation_tasks (
			task_id, user_id, kind, status, progress, prompt, negative_prompt, art_style,
			thumbnail_url, credits_charged, reservation_id, confirm_due, next_poll_at
		) VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.UserID, string(t.Kind), string(t.Status),
		str.SQLNull(t.Prompt), str.SQLNull(t.NegativePrompt), str.SQLNull(t.ArtStyle),
		str.SQLNull(t.ThumbnailURL), t.CreditsCharged, reservationArg(t.ReservationID), t.ConfirmDue, t.NextPollAt,
	)
	return err
}

func (s *pg) ForUser(ctx context.Context, userID, taskID string) (domain.Task, error) {
	return store.One(ctx, s.q, scanTask,
		`SELECT `+taskCols+` FROM generation_tasks WHERE task_id = $1 AND user_id = $2`, taskID, userID)
}

func (s *pg) Complete(ctx context.Context, taskID string, r domain.Result) (bool, error) {
	textures, err := texturesJSON(r.TextureURLs)
	if err != nil {
		return false, err
	}
	tag, err := s.q.Exec(ctx, `
		UPDATE generation_tasks
		   SET status = 'SUCCEEDED',
		       progress = 100,
		       thumbnail_url = COALESCE($2, thumbnail_url),
		       model_glb = $3, model_obj = $4, model_fbx = $5, model_usdz = $6,
		       texture_urls = $7::jsonb,
		       lease_owner = NULL, lease_expires_at = NULL,
		       completed_at = now(), updated_at = now()
		 WHERE task_id = $1 AND status = 'PROCESSING'`,
		taskID, str.SQLNull(r.ThumbnailURL),
		str.SQLNull(r.ModelURLs.GLB), str.SQLNull(r.ModelURLs.OBJ),
		str.SQLNull(r.ModelURLs.FBX), str.SQLNull(r.ModelURLs.USDZ), textures,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *pg) Fail(ctx context.Context, taskID, reason string) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE generation_tasks
		   SET status = 'FAILED', task_error = $2,
		       refund_due = credits_charged > 0,
		       lease_owner = NULL, lease_expires_at = NULL,
		       completed_at = now(), updated_at = now()
		 WHERE task_id = $1 AND status = 'PROCESSING'`, taskID, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *pg) MarkConfirmed(ctx context.Context, taskID string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE generation_tasks SET confirm_due = false, updated_at = now()
		 WHERE task_id = $1 AND confirm_due`, taskID)
	return err
}

func (s *pg) MarkRefunded(ctx context.Context, taskID string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE generation_tasks
		   SET refund_due = false,
		       lease_owner = NULL, lease_expires_at = NULL, updated_at = now()
		 WHERE task_id = $1 AND refund_due`, taskID)
	return err
}

func (s *pg) Progress(ctx context.Context, taskID string, progress int, thumbnail string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE generation_tasks
		   SET progress = GREATEST(progress, $2),
		       thumbnail_url = COALESCE($3, thumbnail_url),
		       updated_at = now()
		 WHERE task_id = $1 AND status = 'PROCESSING'`, taskID, progress, str.SQLNull(thumbnail))
	return err
}

func (s *pg) Reschedule(ctx context.Context, taskID string, attempts int, next time.Time) error {
	return store.ExecOne(ctx, s.q, `
		UPDATE generation_tasks
		   SET poll_attempts = $2, next_poll_at = $3,
		       lease_owner = NULL, lease_expires_at = NULL, updated_at = now()
		 WHERE task_id = $1 AND status = 'PROCESSING'`, taskID, attempts, next)
}

func (s *pg) Lease(ctx context.Context, workerID string, limit int, leaseFor time.Duration) ([]domain.Task, error) {
	if workerID == "" {
		workerID = uuid.NewString()
	}
	return store.Many(ctx, s.q, scanTask, `
		WITH ready AS (
			SELECT task_id
			  FROM generation_tasks
			 WHERE (status = 'PROCESSING' OR confirm_due OR refund_due)
			   AND next_poll_at <= now()
			   AND (lease_expires_at IS NULL OR lease_expires_at <= now())
			 ORDER BY next_poll_at ASC
			 LIMIT $1
			 FOR UPDATE SKIP LOCKED
		), upd AS (
			UPDATE generation_tasks g
			   SET lease_owner = $2,
			       lease_expires_at = now() + make_interval(secs => $3),
			       updated_at = now()
			 WHERE g.task_id IN (SELECT task_id FROM ready)
			RETURNING g.*
		)
		SELECT `+taskCols+` FROM upd ORDER BY next_poll_at`,
		limit, workerID, leaseFor.Seconds())
}

func (s *pg) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Task, error) {
	return store.Many(ctx, s.q, scanTask,
		`SELECT `+taskCols+` FROM generation_tasks
		  WHERE user_id = $1
		  ORDER BY created_at DESC, task_id DESC
		  LIMIT $2 OFFSET $3`, userID, limit, offset)
}

func (s *pg) CountByUser(ctx context.Context, userID string) (int, error) {
	return store.Scalar[int](ctx, s.q, `SELECT count(*) FROM generation_tasks WHERE user_id = $1`, userID)
}
