// maintenance.go — обработчик POST /api/maintenance/reconcile.
package handlers

import (
	"context"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/model-catalog/internal/api/errors"
	"github.com/bigkaa/goartstore/model-catalog/internal/service"
)

// ReconcileRunner — интерфейс запуска сверки.
type ReconcileRunner interface {
	// RunOnce выполняет один цикл сверки.
	// Возвращает отчёт и флаг «уже выполняется».
	RunOnce(ctx context.Context) (*service.Report, bool)
}

// MaintenanceHandler — обработчик endpoints обслуживания.
type MaintenanceHandler struct {
	reconciler ReconcileRunner
}

// NewMaintenanceHandler создаёт обработчик maintenance endpoints.
func NewMaintenanceHandler(reconciler ReconcileRunner) *MaintenanceHandler {
	return &MaintenanceHandler{reconciler: reconciler}
}

// Reconcile синхронно выполняет сверку и возвращает отчёт.
// Если сверка уже выполняется — 409 RECONCILE_IN_PROGRESS.
func (h *MaintenanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, inProgress := h.reconciler.RunOnce(r.Context())
	if inProgress {
		apierrors.ReconcileInProgress(w, "Сверка уже выполняется")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
