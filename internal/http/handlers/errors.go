package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gqlregistry/registry-core/internal/http/response"
	registryerrors "github.com/gqlregistry/registry-core/internal/pkg/errors"
	"github.com/gqlregistry/registry-core/internal/platform/apierr"
)

// toAPIError maps the publisher's sentinel errors onto the HTTP-facing error
// shape (§7 error handling: invalid_argument -> 400, not_found -> 404,
// unauthorized -> 401, everything else -> 500).
func toAPIError(err error) *apierr.Error {
	switch {
	case errors.Is(err, registryerrors.ErrInvalidArgument):
		return apierr.New(http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, registryerrors.ErrNotFound):
		return apierr.New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, registryerrors.ErrUnauthorized):
		return apierr.New(http.StatusUnauthorized, "unauthorized", err)
	default:
		return apierr.New(http.StatusInternalServerError, "internal_error", err)
	}
}

func respondErr(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	response.RespondError(c, apiErr.Status, apiErr.Code, apiErr.Unwrap())
}
