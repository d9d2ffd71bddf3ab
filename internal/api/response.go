package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	kmerrors "github.com/matzehuels/knowledgemap/pkg/errors"
	"github.com/matzehuels/knowledgemap/pkg/session"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the coded error body. Uncoded errors are internal.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, session.ErrNotFound) {
		err = kmerrors.Wrap(kmerrors.ErrCodeSessionNotFound, err, "session not found")
	}
	code := kmerrors.GetCode(err)
	if code == "" {
		code = kmerrors.ErrCodeInternal
	}
	status := kmerrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: string(code), Message: kmerrors.UserMessage(err)}})
}

func writeArtifact(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// decodeJSON reads a JSON request body into v. An empty body leaves v
// untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return kmerrors.Wrap(kmerrors.ErrCodeInvalidInput, err, "invalid request body")
	}
	return nil
}
