package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RespondError maps error kinds to status codes. Anything unclassified is
// logged in full and reported as a generic 500.
func RespondError(c *gin.Context, log *zap.Logger, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, errorBody{Error: code, Message: msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errors.NotValid), errors.Is(err, errors.BadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, errors.Unauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errors.Forbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, errors.NotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errors.AlreadyExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, errors.NotSupported):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

// BindJSON decodes the body, reporting malformed input as NotValid.
func BindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return errors.NewNotValid(err, "invalid request body")
	}
	return nil
}
