// Package http provides the generation submit and polling endpoints
package http

import (
	stdhttp "net/http"

	"shapeshift/internal/modkit/httpkit"
	"shapeshift/internal/platform/net/http/bind"
	"shapeshift/internal/services/generation/domain"
	"shapeshift/internal/services/generation/service"

	"github.com/go-chi/chi/v5"
)

// Options tune the generation routes
type Options struct {
	// MaxUpload bounds an uploaded image
	MaxUpload int64
	// SubmitRPS and SubmitBurst size the per-user submission bucket; zero disables it
	SubmitRPS   float64
	SubmitBurst int
}

// Register mounts the generation endpoints
func Register(r httpkit.Router, gen domain.GenerationPort, o Options) {
	if o.MaxUpload <= 0 {
		o.MaxUpload = 10 << 20
	}
	h := &handlers{gen: gen, maxUpload: o.MaxUpload}

	submit := r
	if o.SubmitRPS > 0 {
		submit = r.With(httpkit.RateLimit(o.SubmitRPS, max(o.SubmitBurst, 1)))
	}
	httpkit.Post(submit, "/image", h.image)
	submit.Post("/text", httpkit.JSON(h.text))

	httpkit.Get(r, "/{taskId}", h.check)
	r.Get("/{taskId}/status", httpkit.Handle(h.status))
}

type handlers struct {
	gen       domain.GenerationPort
	maxUpload int64
}

// @Summary Submit an image for 3D generation
// @Tags Generations
// @Accept multipart/form-data
// @Produce json
// @Security bearerAuth
// @Param image formData file true "JPEG or PNG, at most 10MB"
// @Success 201 {object} domain.Submitted
// @Failure 400 {object} httpkit.Envelope
// @Failure 402 {object} httpkit.Envelope "insufficient credits"
// @Failure 502 {object} httpkit.Envelope "provider rejected the task"
// @Router /generations/image [post]
func (h *handlers) image(r *stdhttp.Request) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	up, err := bind.ParseUpload(r, bind.UploadOptions{Field: "image", MaxBytes: h.maxUpload, Allowed: service.ImageTypes})
	if err != nil {
		return nil, err
	}
	out, err := h.gen.SubmitImage(r.Context(), uid, domain.ImageUpload{
		Filename:    up.Filename,
		ContentType: up.ContentType,
		Data:        up.Data,
	})
	if err != nil {
		return nil, err
	}
	return httpkit.Created(out), nil
}

// @Summary Submit a prompt for 3D generation
// @Tags Generations
// @Accept json
// @Produce json
// @Security bearerAuth
// @Param payload body domain.TextInput true "Prompt"
// @Success 201 {object} domain.Submitted
// @Failure 400 {object} httpkit.Envelope
// @Failure 402 {object} httpkit.Envelope "insufficient credits"
// @Router /generations/text [post]
func (h *handlers) text(r *stdhttp.Request, in domain.TextInput) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	out, err := h.gen.SubmitText(r.Context(), uid, in)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(out), nil
}

// @Summary Current state of a task
// @Tags Generations
// @Produce json
// @Security bearerAuth
// @Param taskId path string true "Task id"
// @Success 200 {object} domain.View
// @Failure 404 {object} httpkit.Envelope
// @Router /generations/{taskId} [get]
func (h *handlers) check(r *stdhttp.Request) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	return h.gen.Check(r.Context(), uid, chi.URLParam(r, "taskId"))
}

// @Summary Poll a task with cache-busted asset URLs
// @Tags Generations
// @Produce json
// @Security bearerAuth
// @Param taskId path string true "Task id"
// @Success 200 {object} domain.View
// @Failure 404 {object} domain.View "provider no longer knows the task"
// @Router /generations/{taskId}/status [get]
func (h *handlers) status(r *stdhttp.Request) httpkit.Response {
	resp := func() httpkit.Response {
		uid, err := httpkit.User(r)
		if err != nil {
			return httpkit.Error(err)
		}
		v, err := h.gen.Status(r.Context(), uid, chi.URLParam(r, "taskId"))
		if err != nil {
			return httpkit.Error(err)
		}
		if v.Gone {
			return httpkit.Response{Status: stdhttp.StatusNotFound, Body: v}
		}
		return httpkit.OK(v)
	}()
	return resp.
		WithHeader("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate").
		WithHeader("Pragma", "no-cache").
		WithHeader("Expires", "0")
}
