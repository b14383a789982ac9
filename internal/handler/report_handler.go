package handler

import (
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/noor-academy/tutoring-api/internal/models"
	"github.com/noor-academy/tutoring-api/internal/service"
	appErrors "github.com/noor-academy/tutoring-api/pkg/errors"
	"github.com/noor-academy/tutoring-api/pkg/response"
)

// ReportHandler exposes analytics export endpoints.
type ReportHandler struct {
	exports *service.ExportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(exports *service.ExportService) *ReportHandler {
	return &ReportHandler{exports: exports}
}

type exportRequest struct {
	Period models.ReportingPeriod `json:"period"`
	Format models.ReportFormat    `json:"format"`
}

// Request godoc
// @Summary Queue an analytics report export
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body exportRequest true "Export parameters"
// @Success 202 {object} response.Envelope
// @Router /analytics/export [post]
func (h *ReportHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid export payload"))
		return
	}
	if req.Period == "" {
		req.Period = models.PeriodWeek
	}
	if req.Format == "" {
		req.Format = models.ReportFormatCSV
	}

	job, err := h.exports.Request(c.Request.Context(), claims.TeacherID, req.Period, req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Poll an export job
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /analytics/export/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	job, err := h.exports.Job(claims.TeacherID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Download streams a completed report addressed by its signed token.
// The token itself authorises the download, so the route is public.
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, relPath, err := h.exports.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	name := path.Base(relPath)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Content-Type", contentTypeFor(name))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}

func contentTypeFor(name string) string {
	switch path.Ext(name) {
	case ".pdf":
		return "application/pdf"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
