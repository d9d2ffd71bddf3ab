package integrations

import (
	"context"
	"errors"
	"net/http"
	"time"

	kmerrors "github.com/matzehuels/knowledgemap/pkg/errors"
)

// DefaultBaseURL is the graph service address used when none is configured.
const DefaultBaseURL = "http://localhost:8000/api/v1"

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when the service answers 404.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrUnauthorized is returned when the service rejects the bearer token.
	ErrUnauthorized = errors.New("unauthorized")
)

// NewHTTPClient creates an HTTP client with the standard request timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// Coded converts a client error into a coded error for the CLI and API
// boundaries. Errors that already carry a code pass through.
func Coded(err error, msg string) error {
	var coded *kmerrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &coded):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return kmerrors.Wrap(kmerrors.ErrCodeTimeout, err, "%s", msg)
	case errors.Is(err, ErrUnauthorized):
		return kmerrors.Wrap(kmerrors.ErrCodeUnauthorized, err, "%s", msg)
	case errors.Is(err, ErrNotFound):
		return kmerrors.Wrap(kmerrors.ErrCodeNotFound, err, "%s", msg)
	default:
		return kmerrors.Wrap(kmerrors.ErrCodeNetwork, err, "%s", msg)
	}
}
