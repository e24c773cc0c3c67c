package meshy

import (
	"strings"

	"shapeshift/internal/core/taskstate"
	str "shapeshift/internal/platform/strings"
)

// ImageTo3DRequest is the create body for image tasks
type ImageTo3DRequest struct {
	ImageURL        string `json:"image_url"`
	AIModel         string `json:"ai_model"`
	Topology        string `json:"topology"`
	TargetPolycount int    `json:"target_polycount"`
	ShouldRemesh    bool   `json:"should_remesh"`
	EnablePBR       bool   `json:"enable_pbr"`
}

// NewImageTo3D returns the request the product submits for an uploaded image
// imageURL is a public URL or a base64 data URI
func NewImageTo3D(imageURL string) ImageTo3DRequest {
	return ImageTo3DRequest{
		ImageURL:        imageURL,
		AIModel:         "meshy-4",
		Topology:        "quad",
		TargetPolycount: 30000,
		ShouldRemesh:    true,
	}
}

// TextTo3DRequest is the create body for text tasks
type TextTo3DRequest struct {
	Mode           string `json:"mode"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	ArtStyle       string `json:"art_style,omitempty"`
	ShouldRemesh   bool   `json:"should_remesh"`
}

// NewTextTo3D returns a preview-mode text request
func NewTextTo3D(prompt, negative, artStyle string) TextTo3DRequest {
	return TextTo3DRequest{
		Mode:           "preview",
		Prompt:         prompt,
		NegativePrompt: negative,
		ArtStyle:       artStyle,
		ShouldRemesh:   true,
	}
}

type createResponse struct {
	Result string `json:"result"`
}

// TaskError is the provider's failure detail
type TaskError struct {
	Message string `json:"message"`
}

// Task is a partial provider task document with the fields we use
type Task struct {
	ID           string                  `json:"id"`
	Status       string                  `json:"status"`
	Progress     int                     `json:"progress"`
	ModelURLs    taskstate.ModelURLs     `json:"model_urls"`
	ThumbnailURL string                  `json:"thumbnail_url"`
	TextureURLs  []taskstate.TextureURLs `json:"texture_urls"`
	TaskError    *TaskError              `json:"task_error"`
	CreatedAt    int64                   `json:"created_at"`
	FinishedAt   int64                   `json:"finished_at"`
}

// State maps the raw provider status
func (t Task) State() taskstate.Status { return taskstate.Map(t.Status) }

// FailureMessage is the provider message, or "Task failed" when it sent none
func (t Task) FailureMessage() string {
	if t.TaskError == nil {
		return "Task failed"
	}
	return str.FirstNonEmpty(strings.TrimSpace(t.TaskError.Message), "Task failed")
}
