package service

import (
	"context"
	"encoding/base64"
	"errors"
	"slices"
	"strings"

	"shapeshift/internal/adapters/provider/meshy"
	"shapeshift/internal/core/normalize"
	"shapeshift/internal/core/taskstate"
	perr "shapeshift/internal/platform/errors"
	"shapeshift/internal/platform/logger"
	andom "shapeshift/internal/services/analytics/domain"
	credom "shapeshift/internal/services/credits/domain"
	dom "shapeshift/internal/services/generation/domain"
)

// ImageTypes are the upload content types accepted for image tasks
var ImageTypes = []string{"image/jpeg", "image/jpg", "image/png"}

// SubmitImage implements dom.GenerationPort
func (s *Service) SubmitImage(ctx context.Context, userID string, in dom.ImageUpload) (dom.Submitted, error) {
	ct := strings.ToLower(strings.TrimSpace(in.ContentType))
	if len(in.Data) == 0 {
		return dom.Submitted{}, perr.WithField(perr.Validationf("file is empty"), "image")
	}
	if !slices.Contains(ImageTypes, ct) {
		return dom.Submitted{}, perr.WithField(perr.Validationf("unsupported file type %s", ct), "image")
	}
	dataURI := "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(in.Data)

	return s.submit(ctx, userID, submission{
		kind:      taskstate.Image,
		thumbnail: dataURI,
		create: func(ctx context.Context) (string, error) {
			return s.provider.CreateImageTo3D(ctx, meshy.NewImageTo3D(dataURI))
		},
	})
}

// SubmitText implements dom.GenerationPort
func (s *Service) SubmitText(ctx context.Context, userID string, in dom.TextInput) (dom.Submitted, error) {
	prompt := normalize.Prompt(in.Prompt)
	negative := normalize.Prompt(in.NegativePrompt)
	switch n := normalize.Len(prompt); {
	case n == 0:
		return dom.Submitted{}, perr.WithField(perr.Validationf("prompt is required"), "prompt")
	case n > normalize.MaxPromptRunes:
		return dom.Submitted{}, perr.WithField(
			perr.Validationf("prompt must be at most %d characters", normalize.MaxPromptRunes), "prompt")
	}
	if normalize.Len(negative) > normalize.MaxPromptRunes {
		return dom.Submitted{}, perr.WithField(
			perr.Validationf("negative_prompt must be at most %d characters", normalize.MaxPromptRunes), "negative_prompt")
	}
	style := strings.ToLower(strings.TrimSpace(in.ArtStyle))
	switch style {
	case "":
		style = dom.StyleRealistic
	case dom.StyleRealistic, dom.StyleSculpture:
	default:
		return dom.Submitted{}, perr.WithField(perr.Validationf("art_style must be one of [realistic sculpture]"), "art_style")
	}

	return s.submit(ctx, userID, submission{
		kind:     taskstate.Text,
		prompt:   prompt,
		negative: negative,
		style:    style,
		create: func(ctx context.Context) (string, error) {
			return s.provider.CreateTextTo3D(ctx, meshy.NewTextTo3D(prompt, negative, style))
		},
	})
}

type submission struct {
	kind      taskstate.Kind
	prompt    string
	negative  string
	style     string
	thumbnail string
	create    func(ctx context.Context) (string, error)
}

// submit reserves credits, creates the provider task and records it
// A reservation is released when the task never comes to exist on our side
func (s *Service) submit(ctx context.Context, userID string, in submission) (dom.Submitted, error) {
	if strings.TrimSpace(userID) == "" {
		return dom.Submitted{}, perr.Unauthorizedf("missing user")
	}
	log := logger.C(ctx).With().Str("kind", string(in.kind)).Logger()
	cost := s.cfg.CreditCost

	acct, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return dom.Submitted{}, err
	}
	if acct.Credits < cost {
		return dom.Submitted{}, perr.InsufficientCreditsf(
			"insufficient credits: %d required, %d available", cost, acct.Credits)
	}

	res, err := s.ledger.Reserve(ctx, userID, cost, credom.UsageMeta{Kind: in.kind, Prompt: in.prompt})
	if err != nil {
		return dom.Submitted{}, err
	}
	release := func(reason string) {
		if err := s.ledger.Release(context.WithoutCancel(ctx), res, reason); err != nil {
			log.Error().Err(err).Str("reservation", res.ID).Msg("release reservation failed")
		}
	}

	taskID, err := in.create(ctx)
	if err != nil {
		release(providerReason(err))
		log.Warn().Err(err).Msg("provider rejected task")
		return dom.Submitted{}, err
	}

	t := dom.Task{
		ID:             taskID,
		UserID:         userID,
		Kind:           in.kind,
		Status:         taskstate.Processing,
		Prompt:         in.prompt,
		NegativePrompt: in.negative,
		ArtStyle:       in.style,
		ThumbnailURL:   in.thumbnail,
		CreditsCharged: cost,
		ReservationID:  res.ID,
		ConfirmDue:     true,
		NextPollAt:     s.cfg.Poll.Next(s.now()),
	}
	if err := s.st.Insert(context.WithoutCancel(ctx), t); err != nil {
		release("task could not be recorded")
		log.Error().Err(err).Str("task_id", taskID).Msg("provider task created but not recorded")
		return dom.Submitted{}, dbErr(err, "record task")
	}

	// an unconfirmed reservation stays due on the row for the poller
	t = s.settle(ctx, t)

	s.metrics.Submitted(string(in.kind))
	s.record(ctx, t, andom.EventSubmitted, cost, "")
	log.Info().Str("task_id", taskID).Int("remaining", res.Remaining).Msg("task submitted")

	return dom.Submitted{
		TaskID:           taskID,
		Status:           taskstate.Processing,
		Message:          dom.MsgCreated,
		ThumbnailURL:     in.thumbnail,
		RemainingCredits: res.Remaining,
	}, nil
}

// providerReason is the ledger note for a rejected submission
func providerReason(err error) string {
	var se *meshy.StatusError
	if errors.As(err, &se) && se.Message() != "" {
		return "provider rejected task: " + se.Message()
	}
	if e, ok := perr.As(err); ok {
		return "provider rejected task: " + e.Message()
	}
	return "provider rejected task"
}
