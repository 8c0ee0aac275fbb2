package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/appwright/pageforge/internal/controllers"
)

func SetupMappings(app *Application) {
	app.Engine.POST("/api-endpoint", controllers.NewGenerateController(app.Tasks, app.Config.SharedSecret).Handle)

	app.Engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "pageforge"})
	})
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
