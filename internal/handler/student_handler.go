package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noor-academy/tutoring-api/internal/models"
	"github.com/noor-academy/tutoring-api/internal/repository"
	appErrors "github.com/noor-academy/tutoring-api/pkg/errors"
	"github.com/noor-academy/tutoring-api/pkg/response"
)

// StudentHandler exposes roster management endpoints.
type StudentHandler struct {
	students *repository.StudentRepository
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(students *repository.StudentRepository) *StudentHandler {
	return &StudentHandler{students: students}
}

type studentRequest struct {
	FullName     string  `json:"fullName" binding:"required"`
	GuardianName *string `json:"guardianName"`
	Timezone     *string `json:"timezone"`
	Level        *string `json:"level"`
}

// List godoc
// @Summary List the teacher's students
// @Tags Students
// @Produce json
// @Param search query string false "Name search"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	filter := models.StudentFilter{
		TeacherID: claims.TeacherID,
		Search:    c.Query("search"),
		Page:      page,
		PageSize:  pageSize,
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}

	students, total, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, total)
	response.JSON(c, http.StatusOK, students, &pagination)
}

// Get fetches a single student. Students belonging to other teachers are
// reported as not found.
func (h *StudentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	student, err := h.students.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "student not found"))
			return
		}
		response.Error(c, err)
		return
	}
	if student.TeacherID != claims.TeacherID {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "student not found"))
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Enroll a student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body studentRequest true "Student details"
// @Success 201 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student payload"))
		return
	}

	student := &models.Student{
		TeacherID:    claims.TeacherID,
		FullName:     req.FullName,
		GuardianName: req.GuardianName,
		Timezone:     req.Timezone,
		Level:        req.Level,
		Active:       true,
	}
	if err := h.students.Create(c.Request.Context(), student); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update modifies an existing student on the teacher's roster.
func (h *StudentHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	student, err := h.students.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "student not found"))
			return
		}
		response.Error(c, err)
		return
	}
	if student.TeacherID != claims.TeacherID {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "student not found"))
		return
	}

	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid student payload"))
		return
	}

	student.FullName = req.FullName
	student.GuardianName = req.GuardianName
	student.Timezone = req.Timezone
	student.Level = req.Level
	if err := h.students.Update(c.Request.Context(), student); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Deactivate removes a student from the active roster while keeping
// their class history intact.
func (h *StudentHandler) Deactivate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	student, err := h.students.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "student not found"))
			return
		}
		response.Error(c, err)
		return
	}
	if student.TeacherID != claims.TeacherID {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "student not found"))
		return
	}

	if err := h.students.Deactivate(c.Request.Context(), student.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
