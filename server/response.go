package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/bizbackend/errors"
)

// DataResponse is the success envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// RespondWithError writes err as an ErrorResponse. Errors that are not
// AppErrors become INTERNAL_ERROR; the cause is kept on the gin context for
// the request log and never sent to the client.
func RespondWithError(c *gin.Context, err error) {
	appErr := errors.From(err)
	if appErr.Cause != nil {
		_ = c.Error(appErr.Cause)
	}
	c.AbortWithStatusJSON(appErr.Status(), appErr.ToResponse())
}

// RespondOK sends a 200 response wrapping data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

// RespondCreated sends a 201 response wrapping data.
func RespondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, DataResponse{Data: data})
}

// RespondNoContent sends a 204 with no body.
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
