package echo

import e "github.com/labstack/echo/v4"

func RegisterRoutes(server *e.Echo, importHandler *ImportHandler, errorHandler *ErrorHandler) {
	api := server.Group("/api/v1")

	api.POST("/imports", importHandler.CreateImport)
	api.GET("/imports/stats", importHandler.GetQueueStats)
	api.POST("/imports/retry", importHandler.RetryFailed)
	api.GET("/imports/:id", importHandler.GetImport)
	api.GET("/imports/:id/errors", errorHandler.ListJobErrors)
	api.GET("/errors/stats", errorHandler.GetGlobalStats)
}
