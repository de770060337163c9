package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/dianxiu-server/internal/constants"
	"github.com/dianxiu-server/internal/logger"
	"github.com/dianxiu-server/internal/models"
	"github.com/dianxiu-server/internal/payment/wechatpay"
	"github.com/dianxiu-server/internal/queue"
	"github.com/dianxiu-server/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const failReasonMaxLen = 255

// PaymentService 支付服务
type PaymentService struct {
	orderRepo       repository.OrderRepository
	paymentRepo     repository.PaymentRepository
	userRepo        repository.UserRepository
	notificationSvc *NotificationService
	queueClient     *queue.Client
	wechatCfg       *wechatpay.Config
}

// NewPaymentService 创建支付服务
func NewPaymentService(
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	userRepo repository.UserRepository,
	notificationSvc *NotificationService,
	queueClient *queue.Client,
	wechatCfg *wechatpay.Config,
) *PaymentService {
	return &PaymentService{
		orderRepo:       orderRepo,
		paymentRepo:     paymentRepo,
		userRepo:        userRepo,
		notificationSvc: notificationSvc,
		queueClient:     queueClient,
		wechatCfg:       wechatCfg,
	}
}

// CreatePaymentInput 创建支付请求
type CreatePaymentInput struct {
	OrderID uint
	UserID  uint
	Type    string
	Context context.Context
}

// CreatePaymentResult 创建支付结果
type CreatePaymentResult struct {
	Payment   *models.Payment
	PayParams *wechatpay.JSAPIPayParams
	Reused    bool
}

// RefundRequestInput 申请退款输入
type RefundRequestInput struct {
	OutTradeNo string
	UserID     uint
	Reason     string
	Context    context.Context
}

// PaymentStatusResult 支付状态查询结果。网关查询失败不阻断本地结果，只附带错误信息。
type PaymentStatusResult struct {
	Payment      *models.Payment
	Gateway      *wechatpay.QueryResult
	GatewayError string
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// CreatePayment 创建支付单并向微信下单。金额取自可信来源：
// 预付款用服务类目配置金额，维修款用电工报价后的订单尾款。
func (s *PaymentService) CreatePayment(input CreatePaymentInput) (*CreatePaymentResult, error) {
	log := paymentLogger(
		"order_id", input.OrderID,
		"user_id", input.UserID,
		"payment_type", input.Type,
	)
	if input.OrderID == 0 || input.UserID == 0 {
		return nil, ErrOrderNotFound
	}
	if input.Type != constants.PaymentTypePrepay && input.Type != constants.PaymentTypeRepair {
		return nil, ErrPaymentAmountInvalid
	}

	user, err := s.userRepo.GetByID(input.UserID)
	if err != nil {
		log.Errorw("payment_create_user_fetch_failed", "error", err)
		return nil, ErrPaymentCreateFailed
	}
	if user == nil || strings.TrimSpace(user.OpenID) == "" {
		return nil, ErrUserNotFound
	}

	// 订单行锁覆盖待支付查询与落单，同一 (订单, 类型) 至多一条待支付单
	var payment *models.Payment
	var amount models.Money
	var orderNo string
	reused := false
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		paymentRepo := s.paymentRepo.WithTx(tx)

		order, err := orderRepo.GetByIDForUpdate(input.OrderID)
		if err != nil {
			log.Errorw("payment_create_order_fetch_failed", "error", err)
			return ErrOrderFetchFailed
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.UserID != input.UserID {
			log.Warnw("payment_create_order_access_denied", "order_user_id", order.UserID)
			return ErrOrderAccessDenied
		}
		orderNo = order.OrderNo

		amount, err = s.resolvePaymentAmount(orderRepo, order, input.Type)
		if err != nil {
			return err
		}

		// 待支付单可复用：避免重复下单占用商户单号
		payment, err = paymentRepo.GetLatestPendingByOrderType(order.ID, input.Type)
		if err != nil {
			log.Errorw("payment_create_pending_lookup_failed", "error", err)
			return ErrPaymentFetchFailed
		}
		reused = payment != nil
		if payment != nil {
			return nil
		}

		payment = &models.Payment{
			OutTradeNo:   generateOutTradeNo(),
			OrderID:      order.ID,
			UserID:       input.UserID,
			Type:         input.Type,
			Amount:       amount,
			Status:       constants.PaymentStatusPending,
			RefundStatus: constants.RefundStatusNone,
		}
		if err := paymentRepo.Create(payment); err != nil {
			log.Errorw("payment_create_insert_failed", "error", err)
			return ErrPaymentCreateFailed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if reused && strings.TrimSpace(payment.PrepayID) != "" {
		payParams, buildErr := wechatpay.BuildJSAPIPayParams(s.wechatCfg, payment.PrepayID)
		if buildErr != nil {
			log.Warnw("payment_create_reuse_sign_failed", "out_trade_no", payment.OutTradeNo, "error", buildErr)
			return nil, ErrPaymentCreateFailed
		}
		log.Infow("payment_create_reused_pending", "out_trade_no", payment.OutTradeNo)
		return &CreatePaymentResult{Payment: payment, PayParams: payParams, Reused: true}, nil
	}

	result, err := wechatpay.CreateJSAPIPayment(input.Context, s.wechatCfg, wechatpay.CreateInput{
		OutTradeNo:  payment.OutTradeNo,
		PaymentID:   payment.ID,
		OpenID:      user.OpenID,
		Amount:      amount.String(),
		Description: paymentDescription(input.Type, orderNo),
	})
	if err != nil {
		s.markPaymentFailed(payment, err)
		mapped := mapWechatGatewayError(err)
		log.Warnw("payment_create_gateway_failed", "out_trade_no", payment.OutTradeNo, "error", err)
		return nil, mapped
	}

	payment.PrepayID = result.PrepayID
	if err := s.paymentRepo.Update(payment); err != nil {
		log.Errorw("payment_create_save_prepay_failed", "out_trade_no", payment.OutTradeNo, "error", err)
		return nil, ErrPaymentUpdateFailed
	}

	payParams, err := wechatpay.BuildJSAPIPayParams(s.wechatCfg, result.PrepayID)
	if err != nil {
		log.Warnw("payment_create_sign_failed", "out_trade_no", payment.OutTradeNo, "error", err)
		return nil, ErrPaymentCreateFailed
	}

	log.Infow("payment_created",
		"out_trade_no", payment.OutTradeNo,
		"amount", payment.Amount.String(),
		"reused", reused,
	)
	return &CreatePaymentResult{Payment: payment, PayParams: payParams, Reused: reused}, nil
}

// QueryPaymentStatus 查询支付状态。以本地状态为准，终态不再触达网关，
// 非终态用网关结果补偿漏单。
func (s *PaymentService) QueryPaymentStatus(ctx context.Context, outTradeNo string, userID uint) (*PaymentStatusResult, error) {
	payment, err := s.paymentRepo.GetByOutTradeNo(strings.TrimSpace(outTradeNo))
	if err != nil {
		return nil, ErrPaymentFetchFailed
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if userID != 0 && payment.UserID != userID {
		return nil, ErrPaymentAccessDenied
	}

	result := &PaymentStatusResult{Payment: payment}
	if constants.IsPaymentStatusTerminal(payment.Status) {
		return result, nil
	}

	gateway, err := wechatpay.QueryOrderByOutTradeNo(ctx, s.wechatCfg, payment.OutTradeNo)
	if err != nil {
		// 网关查询失败不影响本地状态返回
		result.GatewayError = err.Error()
		paymentLogger("out_trade_no", payment.OutTradeNo).Warnw("payment_query_gateway_failed", "error", err)
		return result, nil
	}
	result.Gateway = gateway

	if gateway.Status != payment.Status {
		updated, _, applyErr := s.applyPaymentUpdate(payment, gateway.Status, gateway.TransactionID, gateway.PaidAt)
		if applyErr != nil {
			paymentLogger("out_trade_no", payment.OutTradeNo).Warnw("payment_query_sync_failed", "error", applyErr)
			return result, nil
		}
		result.Payment = updated
	}
	return result, nil
}

// ListPayments 分页查询支付记录
func (s *PaymentService) ListPayments(filter repository.PaymentListFilter) ([]models.Payment, int64, error) {
	return s.paymentRepo.List(filter)
}

// RequestRefund 申请退款。仅限订单取消后对已支付的支付单发起。
func (s *PaymentService) RequestRefund(input RefundRequestInput) (*models.Payment, error) {
	log := paymentLogger(
		"out_trade_no", input.OutTradeNo,
		"user_id", input.UserID,
	)
	var payment *models.Payment
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		locked, err := paymentRepo.GetByOutTradeNoForUpdate(strings.TrimSpace(input.OutTradeNo))
		if err != nil {
			return ErrPaymentFetchFailed
		}
		if locked == nil {
			return ErrPaymentNotFound
		}
		if input.UserID != 0 && locked.UserID != input.UserID {
			return ErrPaymentAccessDenied
		}
		if locked.Status != constants.PaymentStatusSuccess || locked.RefundStatus != constants.RefundStatusNone {
			return ErrPaymentNotRefundable
		}

		order, err := s.orderRepo.WithTx(tx).GetByID(locked.OrderID)
		if err != nil {
			return ErrOrderFetchFailed
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status != constants.OrderStatusCancelled {
			return ErrPaymentNotRefundable
		}

		now := time.Now()
		locked.RefundStatus = constants.RefundStatusProcessing
		locked.OutRefundNo = generateOutRefundNo()
		locked.RefundAmount = locked.Amount
		locked.RefundRequestedAt = &now
		if err := paymentRepo.Update(locked); err != nil {
			return ErrPaymentUpdateFailed
		}
		payment = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	_, gatewayErr := wechatpay.CreateRefund(input.Context, s.wechatCfg, wechatpay.RefundInput{
		OutTradeNo:  payment.OutTradeNo,
		OutRefundNo: payment.OutRefundNo,
		Refund:      payment.RefundAmount.String(),
		Total:       payment.Amount.String(),
		Reason:      input.Reason,
	})
	if gatewayErr != nil {
		// 网关失败回滚退款标记，允许重新发起
		payment.RefundStatus = constants.RefundStatusNone
		payment.OutRefundNo = ""
		payment.RefundRequestedAt = nil
		if saveErr := s.paymentRepo.Update(payment); saveErr != nil {
			log.Errorw("payment_refund_rollback_failed", "error", saveErr)
		}
		log.Warnw("payment_refund_gateway_failed", "error", gatewayErr)
		return nil, mapWechatGatewayError(gatewayErr)
	}

	log.Infow("payment_refund_requested", "out_refund_no", payment.OutRefundNo)
	return payment, nil
}

func (s *PaymentService) resolvePaymentAmount(orderRepo repository.OrderRepository, order *models.Order, paymentType string) (models.Money, error) {
	switch paymentType {
	case constants.PaymentTypePrepay:
		if order.Status != constants.OrderStatusPendingPayment {
			return models.Money{}, ErrOrderStatusInvalid
		}
		serviceType, err := orderRepo.GetServiceType(order.ServiceTypeID)
		if err != nil {
			return models.Money{}, ErrOrderFetchFailed
		}
		if serviceType == nil || !serviceType.PrepayAmount.Decimal.IsPositive() {
			return models.Money{}, ErrPaymentAmountInvalid
		}
		return serviceType.PrepayAmount, nil
	case constants.PaymentTypeRepair:
		if order.Status != constants.OrderStatusPendingRepairPayment {
			return models.Money{}, ErrOrderStatusInvalid
		}
		if !order.FinalAmount.Decimal.IsPositive() {
			return models.Money{}, ErrPaymentAmountInvalid
		}
		return order.FinalAmount, nil
	default:
		return models.Money{}, ErrPaymentAmountInvalid
	}
}

// markPaymentFailed 仅在仍处于待支付态时落失败，
// 成功回调先行到达的终态不被覆盖。
func (s *PaymentService) markPaymentFailed(payment *models.Payment, cause error) {
	reason := truncateFailReason(cause)
	rows, err := s.paymentRepo.UpdateStatusFrom(payment.OutTradeNo, constants.PaymentStatusPending, map[string]interface{}{
		"status":      constants.PaymentStatusFailed,
		"fail_reason": reason,
	})
	if err != nil {
		paymentLogger("out_trade_no", payment.OutTradeNo).Errorw("payment_mark_failed_save_failed", "error", err)
		return
	}
	if rows == 0 {
		paymentLogger("out_trade_no", payment.OutTradeNo).Infow("payment_mark_failed_skipped_not_pending")
		return
	}
	payment.Status = constants.PaymentStatusFailed
	payment.FailReason = reason
}

func mapWechatGatewayError(err error) error {
	switch {
	case errors.Is(err, wechatpay.ErrRateLimited):
		return ErrGatewayRateLimited
	case errors.Is(err, wechatpay.ErrSignatureInvalid):
		return ErrWebhookInvalid
	case errors.Is(err, wechatpay.ErrConfigInvalid):
		return ErrPaymentProviderFailed
	default:
		return ErrPaymentProviderFailed
	}
}

func truncateFailReason(cause error) string {
	if cause == nil {
		return ""
	}
	reason := strings.TrimSpace(cause.Error())
	if len(reason) > failReasonMaxLen {
		reason = reason[:failReasonMaxLen]
	}
	return reason
}

func paymentDescription(paymentType, orderNo string) string {
	if paymentType == constants.PaymentTypePrepay {
		return fmt.Sprintf("上门费预付款 %s", orderNo)
	}
	return fmt.Sprintf("维修费用 %s", orderNo)
}

func generateOutTradeNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("PAY%s%s", now, randNumericCode(6))
}

func generateOutRefundNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("RF%s%s", now, randNumericCode(6))
}

func generateOutBatchNo(electricianID uint) string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("WD%s%d%s", now, electricianID, randNumericCode(6))
}

func randNumericCode(length int) string {
	if length <= 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(strconv.FormatInt(n.Int64(), 10))
	}
	return b.String()
}
