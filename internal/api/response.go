package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cloo-solutions/lessonlens/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors anywhere in err's chain to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch domain.CodeOf(err) {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeAlreadyExists, domain.ErrCodeConstraintViolation:
		return http.StatusConflict
	case domain.ErrCodeEmptyContent, domain.ErrCodeStructuralInvariant:
		return http.StatusUnprocessableEntity
	case domain.ErrCodeExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes the response for err. Errors without a mapped code
// are reported as a bare internal error.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)
	if status == http.StatusInternalServerError {
		JSON(w, status, ErrorResponse{Error: "internal server error", Code: domain.ErrCodeInternalError})
		return
	}
	JSON(w, status, ErrorResponse{Error: err.Error(), Code: domain.CodeOf(err)})
}

// DecodeJSON reads the request body into dst and writes a 400, or a 413 when
// the body limit was hit. It reports whether the handler should continue.
// With optional set an empty body leaves dst untouched.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		JSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large", Code: "PAYLOAD_TOO_LARGE"})
		return false
	}
	JSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: domain.ErrCodeValidation})
	return false
}
