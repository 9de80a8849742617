package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, log *logrus.Logger, mode string) *gin.Engine {
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()

	// 注册中间件
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		bills := api.Group("/bills")
		{
			bills.GET("", h.ListBills)
			bills.POST("", h.SaveBills)
			bills.GET("/:id", h.GetBill)
			bills.PATCH("/:id", h.PatchBill)
			bills.DELETE("/:id", h.DeleteBill)
			bills.GET("/:id/payments", h.ListPayments)
		}

		reports := api.Group("/reports")
		{
			reports.GET("/summary", h.Summary)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
