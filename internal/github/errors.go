package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v66/github"
)

// NetworkError is a non-2xx response or a transport failure (Status 0).
type NetworkError struct {
	Status  int
	Message string
}

func (e *NetworkError) Error() string {
	return e.Message
}

// AlreadyRunningError is returned by TriggerRerun when the workflow run is
// still active and the API refuses a duplicate trigger.
type AlreadyRunningError struct {
	RunID int64
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("workflow run %d is already running", e.RunID)
}

// DecodeError means a response did not match the expected schema.
type DecodeError struct {
	Endpoint string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Endpoint, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing credential or identifier.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

func httpMessage(status int, message string) *NetworkError {
	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}
	return &NetworkError{Status: status, Message: message}
}

// classify maps go-github errors onto the client's error taxonomy.
func classify(endpoint string, err error) error {
	if err == nil {
		return nil
	}

	var (
		errResp   *gh.ErrorResponse
		rateErr   *gh.RateLimitError
		abuseErr  *gh.AbuseRateLimitError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &errResp):
		return httpMessage(statusOf(errResp.Response), errResp.Message)
	case errors.As(err, &rateErr):
		return httpMessage(statusOf(rateErr.Response), rateErr.Message)
	case errors.As(err, &abuseErr):
		return httpMessage(statusOf(abuseErr.Response), abuseErr.Message)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr), errors.Is(err, io.ErrUnexpectedEOF):
		return &DecodeError{Endpoint: endpoint, Err: err}
	case isContextErr(err):
		return err
	}
	return &NetworkError{Message: fmt.Sprintf("%s: %v", endpoint, err)}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isAlreadyRunning(err error) bool {
	var ne *NetworkError
	if !errors.As(err, &ne) || ne.Status != http.StatusForbidden {
		return false
	}
	return strings.Contains(strings.ToLower(ne.Message), "already running")
}
