package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suiflow/suiflow_service/internal/domain/entities"
	"github.com/suiflow/suiflow_service/internal/domain/services/reconciliation"
	"github.com/suiflow/suiflow_service/pkg/logger"
)

// ReportSource provides the latest reconciliation report
type ReportSource interface {
	LatestReport(ctx context.Context) (*entities.ReconciliationReport, error)
}

// ReconciliationHandler serves reconciliation reports
type ReconciliationHandler struct {
	reports ReportSource
	logger  *logger.Logger
}

func NewReconciliationHandler(reports ReportSource, log *logger.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{reports: reports, logger: log}
}

// GetLatest handles GET /api/reconciliation/latest
func (h *ReconciliationHandler) GetLatest(c *gin.Context) {
	report, err := h.reports.LatestReport(c.Request.Context())
	if err != nil {
		if errors.Is(err, reconciliation.ErrNoReport) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		respondDomainError(c, h.logger, err)
		return
	}
	respondSuccess(c, report)
}
