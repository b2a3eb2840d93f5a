package routes

import (
	"price-sync-service/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterPriceRoutes sets up the surcharge table endpoints used by the
// dashboard.
func RegisterPriceRoutes(r *gin.Engine, pc *controllers.PriceTableController) {
	api := r.Group("/api")
	api.GET("/prices", pc.GetPriceTable)
	api.PUT("/prices", pc.UpdatePriceTable)

	// HTML-form flavor posted by the dashboard template
	r.POST("/prices", pc.SubmitPriceForm)
}

// RegisterSyncRoutes sets up the sync trigger, the live progress stream and
// run record lookups.
func RegisterSyncRoutes(r *gin.Engine, sc *controllers.SyncController) {
	sync := r.Group("/sync")
	sync.POST("", sc.TriggerSync)
	sync.GET("/stream", sc.StreamSyncLog)
	sync.GET("/runs/latest", sc.GetLatestRun)
	sync.GET("/runs/:id", sc.GetRun)
}
