package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noor-academy/tutoring-api/internal/repository"
	appErrors "github.com/noor-academy/tutoring-api/pkg/errors"
	"github.com/noor-academy/tutoring-api/pkg/response"
)

// TeacherHandler exposes the authenticated teacher's own profile.
type TeacherHandler struct {
	teachers *repository.TeacherRepository
}

// NewTeacherHandler constructs a teacher handler.
func NewTeacherHandler(teachers *repository.TeacherRepository) *TeacherHandler {
	return &TeacherHandler{teachers: teachers}
}

// Me godoc
// @Summary Current teacher profile
// @Tags Teachers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me [get]
func (h *TeacherHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	teacher, err := h.teachers.FindByID(c.Request.Context(), claims.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "teacher not found"))
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}
