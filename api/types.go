package api

import (
	"github.com/alpenclub/tour-report-backend/services"
)

// Services bundles the domain services the handlers work with.
type Services struct {
	Lifecycle   *services.Lifecycle
	Uploader    *services.Uploader
	Metadata    *services.ImageMetadata
	Maintenance *services.Maintenance
}

// routeHandlers contains all the handlers for different route types
type routeHandlers struct {
	reportHandler      reportHandler
	galleryHandler     galleryHandler
	maintenanceHandler maintenanceHandler
}

// ErrorResponse represents an error response from the API
// @Description Error response structure
type ErrorResponse struct {
	Error   string `json:"error" example:"Internal Server Error"`
	Status  string `json:"status" example:"error"`
	Field   string `json:"field,omitempty" example:"title"`
	Details string `json:"details,omitempty" example:"Additional error details"`
	Cause   string `json:"cause,omitempty" example:"Underlying error cause"`
}
