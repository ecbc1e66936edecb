package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safe-core/internal/handler"
	"safe-core/pkg/monitor"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(safeHandler *handler.SafeHandler) *gin.Engine {
	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler())) // 暴露给 Prometheus

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		safes := api.Group("/safes")
		{
			safes.POST("", safeHandler.RegisterSafe)
			safes.GET("/:address", safeHandler.GetSafeInfo)
		}

		txs := api.Group("/transactions")
		{
			txs.POST("", safeHandler.ProposeTransaction)
			txs.GET("/:hash/confirmations", safeHandler.GetConfirmations)
			txs.POST("/:hash/confirmations", safeHandler.SubmitConfirmation)
		}
	}

	return r
}
