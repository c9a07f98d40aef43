package reports

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sim-portal/project-portal/project-portal-backend/internal/auth"
	"sim-portal/project-portal/project-portal-backend/internal/reports/export"
	"sim-portal/project-portal/project-portal-backend/pkg/workflows"
)

// Handler serves downloadable ledger statements.
type Handler struct {
	service *StatementService
	logger  *zap.Logger
}

func NewHandler(service *StatementService, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers report routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authn *auth.Middleware) {
	reports := router.Group("/reports", authn.RequireActor())
	{
		reports.GET("/projects/:id/statement", h.getStatement)
	}
}

// getStatement returns the ledger as JSON, or as a file when format is
// csv, xlsx or pdf.
func (h *Handler) getStatement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	format := export.Format(strings.ToLower(c.DefaultQuery("format", "json")))
	var exporter export.Exporter
	if format != "json" {
		exporter, err = export.ForFormat(format)
		if err != nil {
			h.fail(c, "Unsupported statement format",
				workflows.NewError(workflows.KindValidation, workflows.CodeInvalidInput, err.Error()))
			return
		}
	}

	statement, err := h.service.Build(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Failed to build statement", err)
		return
	}
	if exporter == nil {
		c.JSON(http.StatusOK, statement)
		return
	}

	var buf bytes.Buffer
	if err := exporter.Export(&buf, statement.Table()); err != nil {
		h.fail(c, "Failed to export statement", err)
		return
	}

	h.logger.Info("Statement exported",
		zap.String("project_id", id.String()),
		zap.String("format", string(format)),
		zap.Int("entries", len(statement.Entries)))

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, statement.Filename(exporter.Extension())))
	c.Data(http.StatusOK, exporter.ContentType(), buf.Bytes())
}

func (h *Handler) fail(c *gin.Context, msg string, err error) {
	status := workflows.HTTPStatus(err)
	if be, ok := workflows.AsError(err); ok {
		h.logger.Debug(msg, zap.String("code", string(be.Code)), zap.Error(err))
		c.JSON(status, gin.H{"error": be})
		return
	}
	h.logger.Error(msg, zap.Error(err))
	c.JSON(status, gin.H{"error": gin.H{"code": "INTERNAL", "message": "internal error"}})
}
