package api

import (
	"net/http"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/errors"
	"github.com/SIMPLYBOYS/mempool_scanner/pkg/logger"
	"github.com/gin-gonic/gin"
)

func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			switch e := err.(type) {
			case *errors.DatabaseError:
				logger.Error("Database error: %v", e)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			case *errors.NotFoundError:
				c.JSON(http.StatusNotFound, gin.H{"error": e.Error()})
			case *errors.APIError:
				if e.StatusCode >= http.StatusInternalServerError {
					logger.Error("API error: %v", e)
				}
				c.JSON(e.StatusCode, gin.H{"error": e.Message})
			default:
				logger.Error("Unexpected error: %v", e)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
			c.Abort()
		}
	}
}
