package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse sends a JSON error payload with the given status
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// SuccessResponse sends a JSON success payload
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// CreatedResponse sends a JSON payload for a newly created resource
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"data": data})
}
