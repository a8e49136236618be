package web

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/lesterapp/lester/internal/errors"
)

// maxBodyBytes caps request bodies; sync payloads are the largest.
const maxBodyBytes = 8 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    errors.ErrorCode  `json:"code"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderError writes err as {"error":{code,message,status}}. Errors that are not
// LesterErrors are reported as INTERNAL without their text.
func renderError(w http.ResponseWriter, err error) {
	lErr, ok := errors.As(err)
	if !ok {
		lErr = errors.NewInternal(err)
	}
	payload := errorPayload{
		Code:    lErr.Code,
		Message: lErr.Message,
		Status:  lErr.Status,
	}
	if fields, ok := lErr.Details["fields"].(map[string]string); ok {
		payload.Fields = fields
	}
	renderJSON(w, lErr.Status, errorBody{Error: payload})
}

// decodeBody reads a single JSON value from the request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case stderrors.As(err, &maxErr):
			return errors.NewInvalidRequest(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		case stderrors.Is(err, io.EOF):
			return errors.NewInvalidRequest("request body is empty")
		default:
			return errors.NewInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
		}
	}
	return nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewInvalidRequest(name + " must be an integer")
	}
	return v, nil
}
