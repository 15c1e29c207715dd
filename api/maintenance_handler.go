package api

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/alpenclub/tour-report-backend/errs"
	"github.com/alpenclub/tour-report-backend/services"
)

type maintenanceHandler struct {
	responder   Responder
	logger      zerolog.Logger
	maintenance *services.Maintenance
}

func newMaintenanceHandler(maintenance *services.Maintenance) maintenanceHandler {
	logger := log.With().Str("handlerName", "maintenanceHandler").Logger()

	return maintenanceHandler{
		responder:   NewResponder(logger),
		logger:      logger,
		maintenance: maintenance,
	}
}

// runMaintenance triggers one reconciliation pass on demand. Admin only; the
// periodic ticker covers the regular schedule.
func (h maintenanceHandler) runMaintenance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		member, err := ctxGetMember(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		if !member.Admin {
			h.responder.WriteError(w, errs.NewPermissionDenied("only administrators may trigger maintenance"))
			return
		}

		summary, err := h.maintenance.Run(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.logger.Info().
			Int("purged", summary.Purged).
			Int("refreshed", summary.Refreshed).
			Int("orphanDirsRemoved", summary.OrphanDirsRemoved).
			Msg("maintenance run triggered via api")

		h.responder.WriteJSON(w, summary)
	}
}
