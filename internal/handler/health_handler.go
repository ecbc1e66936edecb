package handler

import (
	"github.com/gin-gonic/gin"

	"safe-core/internal/handler/response"
)

// HealthCheck 健康检查
func HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
