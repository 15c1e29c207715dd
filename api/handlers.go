package api

// initializeHandlers creates and returns all handlers organized in a routeHandlers struct
func initializeHandlers(svcs Services, tmpDir string) *routeHandlers {
	return &routeHandlers{
		reportHandler:      newReportHandler(svcs.Lifecycle),
		galleryHandler:     newGalleryHandler(svcs.Lifecycle, svcs.Uploader, svcs.Metadata, tmpDir),
		maintenanceHandler: newMaintenanceHandler(svcs.Maintenance),
	}
}
