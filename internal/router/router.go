package router

import (
	"fmt"
	"strings"

	"github.com/dianxiu-server/internal/cache"
	"github.com/dianxiu-server/internal/config"
	publichandlers "github.com/dianxiu-server/internal/http/handlers/public"
	"github.com/dianxiu-server/internal/http/response"
	"github.com/dianxiu-server/internal/logger"
	"github.com/dianxiu-server/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "dx"
	}
	redisClient := cache.Client()
	withdrawalRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:withdrawal", redisPrefix),
		WindowSeconds: cfg.Withdraw.RateLimitWindowSecs,
		MaxRequests:   cfg.Withdraw.RateLimitMaxRequests,
		Message:       "提现请求过于频繁",
	}

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", func(ctx *gin.Context) {
		response.Success(ctx, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		// 微信回调（验签在业务层完成，不走用户鉴权）
		apiV1.POST("/payments/callback", publicHandler.PaymentCallback)
		apiV1.POST("/payments/refund/callback", publicHandler.RefundCallback)
		apiV1.POST("/withdrawals/callback", publicHandler.TransferCallback)

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.JWT.SecretKey, c.UserRepo))
		{
			user.POST("/payments", publicHandler.CreatePayment)
			user.GET("/payments", publicHandler.ListPayments)
			user.GET("/payments/:out_trade_no", publicHandler.GetPayment)
			user.POST("/payments/:out_trade_no/refund", publicHandler.RequestRefund)

			user.POST("/withdrawals", RateLimitMiddleware(redisClient, withdrawalRule, KeyByUserID), publicHandler.CreateWithdrawal)
			user.GET("/withdrawals", publicHandler.ListWithdrawals)
			user.GET("/withdrawals/:out_batch_no", publicHandler.GetWithdrawal)
			user.POST("/withdrawals/:out_batch_no/cancel", publicHandler.CancelWithdrawal)
			user.GET("/balance", publicHandler.GetBalance)

			user.GET("/notifications", publicHandler.ListNotifications)
			user.POST("/notifications/:id/read", publicHandler.MarkNotificationRead)
		}
	}

	return r
}
