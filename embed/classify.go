package embed

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/poiesic/embedfill/core"
	"google.golang.org/genai"
)

// Class is the outcome category of a failed embedding request.
type Class int

const (
	// ClassRetryable failures are transient; affected rows stay pending.
	ClassRetryable Class = iota
	// ClassPermissionDenied failures are authentication or authorization errors.
	ClassPermissionDenied
	// ClassInvalidArgument failures are requests the provider will never accept.
	ClassInvalidArgument
)

// String returns the status code used in the status column.
func (c Class) String() string {
	switch c {
	case ClassPermissionDenied:
		return "PERMISSION_DENIED"
	case ClassInvalidArgument:
		return "INVALID_ARGUMENT"
	default:
		return "RETRYABLE"
	}
}

// statusCodePattern matches the status code in langchaingo's OpenAI client errors.
var statusCodePattern = regexp.MustCompile(`status code:? (\d{3})`)

// ClassifyError maps a provider error to a Class.
// Errors carrying no recognizable HTTP status are treated as retryable.
func ClassifyError(err error) Class {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyStatus(apiErrPtr.Code)
	}
	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return classifyStatus(code)
	}
	return ClassRetryable
}

func classifyStatus(code int) Class {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ClassPermissionDenied
	case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return ClassInvalidArgument
	default:
		return ClassRetryable
	}
}

// StatusFor formats the status column value for a failed request.
func StatusFor(err error) string {
	class := ClassifyError(err)
	if class == ClassRetryable {
		return core.RetryableStatus(err.Error())
	}
	return class.String() + ": " + err.Error()
}
