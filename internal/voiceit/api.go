package voiceit

import (
	"context"
	"net/http"
	"net/url"
)

// ResponseSuccess is the responseCode VoiceIt uses for a successful call.
const ResponseSuccess = "SUCC"

// Result carries the fields every VoiceIt response has.
type Result struct {
	ResponseCode string `json:"responseCode"`
	Message      string `json:"message,omitempty"`
	Status       int    `json:"status,omitempty"`
	TimeTaken    string `json:"timeTaken,omitempty"`
}

// Succeeded reports a business-level success. Any other code is a failure,
// even on HTTP 200.
func (r Result) Succeeded() bool { return r.ResponseCode == ResponseSuccess }

type CreateUserResponse struct {
	Result
	UserID    string `json:"userId"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// VoiceRequest is the body shared by enrollment and verification by URL.
type VoiceRequest struct {
	UserID          string `json:"userId"`
	ContentLanguage string `json:"contentLanguage"`
	Phrase          string `json:"phrase"`
	FileURL         string `json:"fileUrl"`
}

type EnrollmentResponse struct {
	Result
	ID             int64   `json:"id,omitempty"`
	Text           string  `json:"text,omitempty"`
	TextConfidence float64 `json:"textConfidence,omitempty"`
}

type VerificationResponse struct {
	Result
	Confidence     float64 `json:"confidence"`
	Text           string  `json:"text,omitempty"`
	TextConfidence float64 `json:"textConfidence,omitempty"`
}

// CreateUser creates a new biometric user (POST /users).
func (c *Client) CreateUser(ctx context.Context) (CreateUserResponse, error) {
	var out CreateUserResponse
	err := c.Request(ctx, http.MethodPost, "/users", "", nil, &out)
	return out, err
}

// EnrollVoiceByURL submits a recording URL as an enrollment sample.
func (c *Client) EnrollVoiceByURL(ctx context.Context, in VoiceRequest) (EnrollmentResponse, error) {
	var out EnrollmentResponse
	err := c.Request(ctx, http.MethodPost, "/enrollments/voice/byUrl", "", in, &out)
	return out, err
}

// VerifyVoiceByURL compares a recording URL against the user's voiceprint.
func (c *Client) VerifyVoiceByURL(ctx context.Context, in VoiceRequest) (VerificationResponse, error) {
	var out VerificationResponse
	err := c.Request(ctx, http.MethodPost, "/verification/voice/byUrl", "", in, &out)
	return out, err
}

// HealthCheck lists the account's phrases for a language; it proves that the
// API is reachable and the credentials are accepted.
func (c *Client) HealthCheck(ctx context.Context, contentLanguage string) error {
	var out Result
	return c.Request(ctx, http.MethodGet, "/phrases/"+url.PathEscape(contentLanguage), "", nil, &out)
}
