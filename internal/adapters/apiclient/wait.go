package apiclient

import (
	"context"
	"errors"

	"shapeshift/internal/core/poll"
	"shapeshift/internal/core/taskstate"
	perr "shapeshift/internal/platform/errors"
	gendom "shapeshift/internal/services/generation/domain"
)

// ErrTimedOut is returned when the poll budget ran out before the task finished
var ErrTimedOut = errors.New("generation timed out")

// WaitForModel polls the status route until the task is terminal
// Transient errors use up a poll without ending the wait; onPoll may be nil
func (c *Client) WaitForModel(ctx context.Context, taskID string, p poll.Policy, onPoll func(attempt int, v gendom.View)) (gendom.View, error) {
	v, err := poll.Until(ctx, p, func(ctx context.Context, attempt int) (gendom.View, bool, error) {
		v, err := c.Status(ctx, taskID)
		if err != nil {
			if perr.Retryable(err) {
				return v, false, nil
			}
			return v, false, err
		}
		if onPoll != nil {
			onPoll(attempt, v)
		}
		return v, taskstate.Terminal(v.Status), nil
	})
	if errors.Is(err, poll.ErrExhausted) {
		return v, ErrTimedOut
	}
	return v, err
}
