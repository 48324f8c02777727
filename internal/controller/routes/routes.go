package routes

import (
	"net/http"

	"simpleweb3/internal/controller/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers the API routes for the application
func RegisterRoutes(router *gin.Engine, h *handler.Handler) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	api.GET("/ping", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "pong")
	})
	api.GET("/health", h.Health)

	api.POST("/solana-validator", h.SolanaValidator)

	api.POST("/tx/validate", h.ValidateTransaction)
	api.POST("/tx/send", h.SendTransaction)

	api.POST("/gas/estimate", h.EstimateGas)
	api.GET("/gas/fees", h.Fees)
	api.GET("/gas/history", h.FeeHistory)
	api.GET("/gas/stream", h.FeeStream)

	api.POST("/sign/verify", h.VerifySignature)
	api.POST("/convert", h.Convert)
}
