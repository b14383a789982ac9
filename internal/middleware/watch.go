package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noor-academy/tutoring-api/internal/models"
	"github.com/noor-academy/tutoring-api/internal/service"
)

// WatchTeacher lazily registers a record store subscription for the
// authenticated teacher so their analytics cache tracks session writes.
// Must run after JWT.
func WatchTeacher(watch *service.WatchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if watch != nil {
			if value, exists := c.Get(ContextUserKey); exists {
				if claims, ok := value.(*models.JWTClaims); ok && claims.TeacherID != "" {
					// Watch is a no-op for teachers already being watched.
					_ = watch.Watch(c.Request.Context(), claims.TeacherID)
				}
			}
		}
		c.Next()
	}
}
