package meshy

import (
	"context"
	"net/http"
	"net/url"

	"shapeshift/internal/core/taskstate"
	perr "shapeshift/internal/platform/errors"
)

const (
	imagePath = "/v1/image-to-3d"
	textPath  = "/v2/text-to-3d"
)

func kindPath(k taskstate.Kind) (string, error) {
	switch k {
	case taskstate.Image:
		return imagePath, nil
	case taskstate.Text:
		return textPath, nil
	}
	return "", perr.InvalidArgf("unknown task kind %q", k)
}

// CreateImageTo3D submits an image task and returns the provider task id
func (c *Client) CreateImageTo3D(ctx context.Context, in ImageTo3DRequest) (string, error) {
	if in.ImageURL == "" {
		return "", perr.WithField(perr.Validationf("image_url is required"), "image_url")
	}
	return c.create(ctx, "create_image", imagePath, in)
}

// CreateTextTo3D submits a text task and returns the provider task id
func (c *Client) CreateTextTo3D(ctx context.Context, in TextTo3DRequest) (string, error) {
	if in.Prompt == "" {
		return "", perr.WithField(perr.Validationf("prompt is required"), "prompt")
	}
	return c.create(ctx, "create_text", textPath, in)
}

func (c *Client) create(ctx context.Context, op, path string, in any) (string, error) {
	var out createResponse
	if err := c.do(ctx, op, http.MethodPost, path, in, &out); err != nil {
		return "", err
	}
	if out.Result == "" {
		return "", perr.Newf(perr.ErrorCodeProvider, "meshy returned no task id")
	}
	return out.Result, nil
}

// Task fetches the current state of a task
func (c *Client) Task(ctx context.Context, kind taskstate.Kind, id string) (Task, error) {
	base, err := kindPath(kind)
	if err != nil {
		return Task{}, err
	}
	if id == "" {
		return Task{}, perr.WithField(perr.Validationf("task id is required"), "task_id")
	}
	var t Task
	if err := c.do(ctx, "task_"+string(kind), http.MethodGet, base+"/"+url.PathEscape(id), nil, &t); err != nil {
		return Task{}, err
	}
	if t.ID == "" {
		t.ID = id
	}
	return t, nil
}
