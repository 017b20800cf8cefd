package leadform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

// Intake is the lead-intake collaborator: it creates a contact from the
// payload or reports why it could not.
type Intake interface {
	Create(ctx context.Context, req Request) (*Receipt, error)
}

// Receipt identifies the record created by the intake endpoint.
type Receipt struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// envelope mirrors the JSON shape returned by POST /api/register.
type envelope struct {
	Success bool     `json:"success"`
	Data    *Receipt `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
}

// DefaultEndpoint is the path of the registration endpoint on the API host.
const DefaultEndpoint = "/api/register"

// HTTPIntake posts lead payloads to the registration endpoint as JSON.
type HTTPIntake struct {
	endpoint string
	client   *http.Client
	logger   *logging.Logger
}

// NewHTTPIntake builds a client for endpoint. A nil client gets a 10s timeout.
func NewHTTPIntake(endpoint string, client *http.Client, logger *logging.Logger) *HTTPIntake {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPIntake{
		endpoint: strings.TrimSpace(endpoint),
		client:   client,
		logger:   logger,
	}
}

// Create issues one POST and classifies the answer. It never retries.
func (c *HTTPIntake) Create(ctx context.Context, req Request) (*Receipt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Op: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "post lead", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &TransportError{Op: "read response", Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if decodeErr != nil {
			return nil, &TransportError{Op: "decode response", Err: decodeErr}
		}
		if env.Data == nil || env.Data.ID == "" {
			return nil, &TransportError{Op: "decode response", Err: fmt.Errorf("missing created record in %d response", resp.StatusCode)}
		}
		c.logger.Debug("lead accepted", "id", env.Data.ID, "status", resp.StatusCode)
		return env.Data, nil
	case resp.StatusCode == http.StatusConflict:
		return nil, &ConflictError{Email: req.Email, Message: env.Message}
	default:
		return nil, &RejectedError{StatusCode: resp.StatusCode, Message: env.Message}
	}
}

var _ Intake = (*HTTPIntake)(nil)
