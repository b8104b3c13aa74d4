package domain

import "github.com/google/uuid"

// RunRequest is an incoming ad-hoc run from the API.
type RunRequest struct {
	Language  Language      `json:"language" binding:"required"`
	Code      string        `json:"code" binding:"required"`
	Testcases []RunTestcase `json:"testcases" binding:"required,min=1"`
}

// SubmitRequest is an incoming graded submission from the API.
type SubmitRequest struct {
	UserID    uuid.UUID  `json:"user_id" binding:"required"`
	ProblemID uuid.UUID  `json:"problem_id" binding:"required"`
	ContestID *uuid.UUID `json:"contest_id,omitempty"`
	Language  Language   `json:"language" binding:"required"`
	Code      string     `json:"code" binding:"required"`
}

// SubmitResponse is returned after a submission is accepted for judging.
type SubmitResponse struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Status       string    `json:"status"`
}
