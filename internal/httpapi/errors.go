package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roach88/sprintledger/internal/apperr"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func statusOf(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	if apperr.IsStoreUnavailable(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *handlers) fail(c *gin.Context, err error) {
	status := statusOf(err)
	body := errorBody{Code: string(apperr.CodeOf(err)), Detail: "internal error"}

	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		body.Detail = ae.Message
	case status == http.StatusServiceUnavailable:
		body.Code = string(apperr.CodeStoreUnavailable)
		body.Detail = "request timed out"
	}
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}
