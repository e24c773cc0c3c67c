// Package domain defines generation tasks and the views clients poll
package domain

import (
	"time"

	"shapeshift/internal/core/taskstate"
)

// Messages shown to clients
const (
	MsgCreated    = "Task created successfully"
	MsgInProgress = "Model generation in progress"
	MsgFailed     = "Task failed"
	MsgNotFound   = "Task not found"
	MsgTimedOut   = "Generation timed out"
)

// Art styles accepted for text tasks
const (
	StyleRealistic = "realistic"
	StyleSculpture = "sculpture"
)

// Task is a row of generation_tasks
type Task struct {
	ID             string
	UserID         string
	Kind           taskstate.Kind
	Status         taskstate.Status
	Progress       int
	Prompt         string
	NegativePrompt string
	ArtStyle       string
	ThumbnailURL   string
	ModelURLs      taskstate.ModelURLs
	TextureURLs    []taskstate.TextureURLs
	TaskError      string
	CreditsCharged int
	ReservationID  string
	// ConfirmDue and RefundDue mark ledger writes still owed for this task
	ConfirmDue   bool
	RefundDue    bool
	PollAttempts int
	NextPollAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// Result is what a finished provider task leaves behind
type Result struct {
	ThumbnailURL string
	ModelURLs    taskstate.ModelURLs
	TextureURLs  []taskstate.TextureURLs
}

// ImageUpload is a validated image from a multipart form
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// TextInput is the body of a text submission
type TextInput struct {
	Prompt         string `json:"prompt"          validate:"required,notblank"`
	NegativePrompt string `json:"negative_prompt" validate:"omitempty"`
	ArtStyle       string `json:"art_style"       validate:"omitempty,oneof=realistic sculpture"`
}

// Submitted answers a successful submission
type Submitted struct {
	TaskID           string           `json:"taskId"`
	Status           taskstate.Status `json:"status"`
	Message          string           `json:"message"`
	ThumbnailURL     string           `json:"thumbnail_url"`
	RemainingCredits int              `json:"remainingCredits"`
}

// View is the polled state of one task
type View struct {
	TaskID       string                  `json:"taskId"`
	Kind         taskstate.Kind          `json:"type"`
	Status       taskstate.Status        `json:"status"`
	Progress     int                     `json:"progress"`
	Message      string                  `json:"message,omitempty"`
	Error        string                  `json:"error,omitempty"`
	ThumbnailURL string                  `json:"thumbnail_url,omitempty"`
	ModelURLs    *taskstate.ModelURLs    `json:"model_urls,omitempty"`
	Textures     []taskstate.TextureURLs `json:"textures,omitempty"`
	Timestamp    int64                   `json:"timestamp,omitempty"`

	// Gone is set when the provider no longer knows the task
	Gone bool `json:"-"`
}

// Outcome is the result of one poller reconcile
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeRetry     Outcome = "retry"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeSkipped   Outcome = "skipped"
	// OutcomeSettled is a finished task whose owed ledger writes landed
	OutcomeSettled Outcome = "settled"
)
