package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linelogic/fraudgate/pkg/validation"
)

// RespondWithValidationError sends a standardized validation error response
func RespondWithValidationError(c *gin.Context, err error) {
	if valErr, ok := validation.FromBindingError(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Validation failed",
			"fields": valErr.Errors,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request format",
		"details": err.Error(),
	})
}

// ValidateAndBind binds the JSON body to req and validates it. Returns true
// if validation passes, false otherwise (and sends the error response).
func ValidateAndBind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		RespondWithValidationError(c, err)
		return false
	}
	return true
}
