package provider

import (
	"github.com/dianxiu-server/internal/cache"
	"github.com/dianxiu-server/internal/config"
	"github.com/dianxiu-server/internal/logger"
	"github.com/dianxiu-server/internal/models"
	"github.com/dianxiu-server/internal/payment/wechatpay"
	"github.com/dianxiu-server/internal/queue"
	"github.com/dianxiu-server/internal/repository"
	"github.com/dianxiu-server/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config       *config.Config
	QueueClient  *queue.Client
	WechatConfig *wechatpay.Config

	// Repositories
	UserRepo         repository.UserRepository
	OrderRepo        repository.OrderRepository
	PaymentRepo      repository.PaymentRepository
	WithdrawalRepo   repository.WithdrawalRepository
	NotificationRepo repository.NotificationRepository

	// Services
	BalanceService      *service.BalanceService
	NotificationService *service.NotificationService
	PaymentService      *service.PaymentService
	WithdrawalService   *service.WithdrawalService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:       cfg,
		QueueClient:  queueClient,
		WechatConfig: buildWechatConfig(&cfg.Wechat),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.WithdrawalRepo = repository.NewWithdrawalRepository(db)
	c.NotificationRepo = repository.NewNotificationRepository(db)
}

func (c *Container) initServices() {
	c.BalanceService = service.NewBalanceService(c.PaymentRepo, c.WithdrawalRepo)
	c.NotificationService = service.NewNotificationService(c.NotificationRepo, c.QueueClient)
	c.PaymentService = service.NewPaymentService(
		c.OrderRepo,
		c.PaymentRepo,
		c.UserRepo,
		c.NotificationService,
		c.QueueClient,
		c.WechatConfig,
	)
	c.WithdrawalService = service.NewWithdrawalService(
		c.WithdrawalRepo,
		c.UserRepo,
		c.BalanceService,
		c.NotificationService,
		c.QueueClient,
		c.WechatConfig,
		resolveMinWithdrawAmount(c.Config.Withdraw.MinAmount),
	)
}

// Close 释放容器持有的资源
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
}

func buildWechatConfig(cfg *config.WechatConfig) *wechatpay.Config {
	wc := &wechatpay.Config{
		AppID:              cfg.AppID,
		MerchantID:         cfg.MerchantID,
		MerchantSerialNo:   cfg.MerchantSerialNo,
		MerchantPrivateKey: cfg.MerchantPrivateKey,
		APIV3Key:           cfg.APIV3Key,
		PlatformSerialNo:   cfg.PlatformSerialNo,
		PlatformPublicKey:  cfg.PlatformPublicKey,
		NotifyURL:          cfg.NotifyURL,
		RefundNotifyURL:    cfg.RefundNotifyURL,
		TransferNotifyURL:  cfg.TransferNotifyURL,
		TransferSceneID:    cfg.TransferSceneID,
		BaseURL:            cfg.BaseURL,
	}
	wc.Normalize()
	if err := wechatpay.ValidateConfig(wc); err != nil {
		logger.Warnw("provider_wechat_config_incomplete", "error", err)
	}
	return wc
}

func resolveMinWithdrawAmount(raw string) models.Money {
	amount, err := models.NewMoneyFromString(raw)
	if err != nil || !amount.Decimal.IsPositive() {
		logger.Warnw("provider_min_withdraw_amount_invalid", "value", raw)
		fallback, _ := models.NewMoneyFromString("1.00")
		return fallback
	}
	return amount
}
