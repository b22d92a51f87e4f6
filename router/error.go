package router

import (
	"net/http"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/wardenfs/warden/sandbox"
)

// RequestError wraps an error encountered while handling an HTTP request so
// it can be mapped onto a status code and presented consistently.
type RequestError struct {
	err error
}

// NewTrackedError returns a new RequestError for the provided error,
// attaching a stack trace if one is missing at this point.
func NewTrackedError(err error) *RequestError {
	return &RequestError{err: errors.WithStackDepthIf(err, 1)}
}

func (re *RequestError) Error() string {
	return re.err.Error()
}

// Abort responds to the request with the status and message derived from the
// underlying sandbox error code, falling back to a logged HTTP 500 for
// anything unrecognized.
func (re *RequestError) Abort(c *gin.Context) {
	status, msg := re.asSandboxError()
	if status == 0 {
		reqID := c.GetString("request_id")
		log.WithField("request_id", reqID).
			WithField("url", c.Request.URL.String()).
			WithField("error", re.err).
			Error("error while handling HTTP request")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      "An unexpected error was encountered while processing this request.",
			"request_id": reqID,
		})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// Maps a sandbox error code onto the HTTP status and user-facing message for
// it. Returns zero values when the error is not a recognized sandbox error.
func (re *RequestError) asSandboxError() (int, string) {
	err := re.err
	switch {
	case sandbox.IsErrorCode(err, sandbox.ErrCodeNotExist),
		sandbox.IsErrorCode(err, sandbox.ErrCodePathResolution):
		return http.StatusNotFound, "The requested resource was not found on the system."
	case sandbox.IsErrorCode(err, sandbox.ErrCodeDenylistFile):
		return http.StatusForbidden, "This path cannot be accessed: it is present on the denylist."
	case sandbox.IsErrorCode(err, sandbox.ErrCodeExtensionDenied):
		return http.StatusForbidden, "Files with this extension cannot be accessed through the sandbox."
	case sandbox.IsErrorCode(err, sandbox.ErrCodeIsDirectory):
		return http.StatusBadRequest, "Cannot perform that action: the target is a directory."
	case sandbox.IsErrorCode(err, sandbox.ErrCodeSizeLimit):
		return http.StatusBadRequest, "The content exceeds the maximum file size for this sandbox."
	case sandbox.IsErrorCode(err, sandbox.ErrCodeAlreadyExists):
		return http.StatusConflict, "A file already exists at the destination path."
	case sandbox.IsErrorCode(err, sandbox.ErrCodeTooBusy):
		return http.StatusTooManyRequests, "Too many operations are currently in flight, try again shortly."
	case sandbox.IsErrorCode(err, sandbox.ErrCodeNoMatch):
		return http.StatusUnprocessableEntity, "The fragment to replace was not found in the file."
	case sandbox.IsErrorCode(err, sandbox.ErrCodeAmbiguousMatch):
		return http.StatusUnprocessableEntity, "The fragment to replace occurs more than once in the file."
	}
	return 0, ""
}

// WithError is a convenience for handlers to abort with a tracked error.
func WithError(c *gin.Context, err error) {
	NewTrackedError(err).Abort(c)
}
