package api

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes wires the public reader endpoints and the authenticated
// contributor endpoints.
func setupRoutes(r chi.Router, handlers *routeHandlers, auth authMiddleware) {
	// Public reader routes
	r.Group(func(r chi.Router) {
		r.Use(ColoredHTTPLoggingMiddleware)

		r.Get("/reports", handlers.reportHandler.listReports())
		r.Get("/report/{reportID}", handlers.reportHandler.getReport())
	})

	// Authenticated contributor routes
	r.Group(func(r chi.Router) {
		r.Use(auth.authenticate)
		r.Use(ColoredHTTPLoggingMiddleware)

		r.Post("/report", handlers.reportHandler.createReport())
		r.Get("/my-report", handlers.reportHandler.getMyReport())
		r.Put("/report/{reportID}", handlers.reportHandler.updateReport())
		r.Put("/report/{reportID}/publish-state", handlers.reportHandler.setPublishState())

		r.Post("/report/{reportID}/images", handlers.galleryHandler.uploadImages())
		r.Delete("/report/{reportID}/image/{imageID}", handlers.galleryHandler.removeImage())
		r.Put("/report/{reportID}/image-order", handlers.galleryHandler.reorderImages())

		r.Get("/image/{imageID}/caption", handlers.galleryHandler.getCaption())
		r.Put("/image/{imageID}/caption", handlers.galleryHandler.setCaption())
		r.Put("/image/{imageID}/rotate", handlers.galleryHandler.rotateImage())

		r.Post("/maintenance/run", handlers.maintenanceHandler.runMaintenance())
	})
}
