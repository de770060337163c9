package service

import (
	"context"
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

// 提现补偿查询延迟，兜底微信回调丢失的场景
const withdrawalRequeryDelay = 5 * time.Minute

// WithdrawalService 提现服务
type WithdrawalService struct {
	withdrawalRepo repository.WithdrawalRepository
	userRepo       repository.UserRepository
	balanceSvc     *BalanceService
	notificationSvc *NotificationService
	queueClient    *queue.Client
	wechatCfg      *wechatpay.Config
	minAmount      models.Money
}

// NewWithdrawalService 创建提现服务
func NewWithdrawalService(
	withdrawalRepo repository.WithdrawalRepository,
	userRepo repository.UserRepository,
	balanceSvc *BalanceService,
	notificationSvc *NotificationService,
	queueClient *queue.Client,
	wechatCfg *wechatpay.Config,
	minAmount models.Money,
) *WithdrawalService {
	return &WithdrawalService{
		withdrawalRepo:  withdrawalRepo,
		userRepo:        userRepo,
		balanceSvc:      balanceSvc,
		notificationSvc: notificationSvc,
		queueClient:     queueClient,
		wechatCfg:       wechatCfg,
		minAmount:       minAmount,
	}
}

// CreateWithdrawalInput 发起提现输入
type CreateWithdrawalInput struct {
	ElectricianID uint
	Amount        models.Money
	Context       context.Context
}

// WithdrawalStatusResult 提现状态查询结果。网关查询失败不阻断本地结果。
type WithdrawalStatusResult struct {
	Withdrawal   *models.Withdrawal
	Gateway      *wechatpay.TransferResult
	GatewayError string
}

func withdrawalLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// CreateWithdrawal 发起提现。事务内锁定用户行做余额校验并落库，
// 提交后再请求微信转账，网关结果只推进状态不回滚单据。
func (s *WithdrawalService) CreateWithdrawal(input CreateWithdrawalInput) (*models.Withdrawal, error) {
	log := withdrawalLogger(
		"electrician_id", input.ElectricianID,
		"amount", input.Amount.String(),
	)
	if input.ElectricianID == 0 {
		return nil, ErrUserNotFound
	}
	if input.Amount.Decimal.IsPositive() && input.Amount.Decimal.LessThan(s.minAmount.Decimal) {
		return nil, ErrWithdrawalAmountTooSmall
	}

	var withdrawal *models.Withdrawal
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		userRepo := s.userRepo.WithTx(tx)
		withdrawalRepo := s.withdrawalRepo.WithTx(tx)

		// 行锁串行化同一电工的并发提现
		user, err := userRepo.GetByIDForUpdate(input.ElectricianID)
		if err != nil {
			return ErrWithdrawalCreateFailed
		}
		if user == nil {
			return ErrUserNotFound
		}
		if user.Role != constants.UserRoleElectrician {
			return ErrUserRoleInvalid
		}
		if strings.TrimSpace(user.OpenID) == "" {
			return ErrUserNotFound
		}

		cert, err := userRepo.GetCertification(input.ElectricianID)
		if err != nil {
			return ErrWithdrawalCreateFailed
		}
		// 实名为空无法向微信侧携带收款人姓名，按未认证拒绝
		if cert == nil || cert.Status != constants.CertificationStatusApproved ||
			strings.TrimSpace(cert.RealName) == "" {
			return ErrWithdrawalNotCertified
		}

		active, err := withdrawalRepo.HasActiveByElectrician(input.ElectricianID)
		if err != nil {
			return ErrWithdrawalCreateFailed
		}
		if active {
			return ErrWithdrawalInProgress
		}

		balance, err := s.balanceSvc.CalculateBalance(input.ElectricianID, tx)
		if err != nil {
			return ErrWithdrawalCreateFailed
		}
		// 未指定金额时默认全额提现
		amount := input.Amount
		if !amount.Decimal.IsPositive() {
			amount = balance.AvailableBalance
		}
		if amount.Decimal.LessThan(s.minAmount.Decimal) {
			return ErrWithdrawalAmountTooSmall
		}
		if amount.Decimal.GreaterThan(balance.AvailableBalance.Decimal) {
			return ErrWithdrawalInsufficient
		}

		withdrawal = &models.Withdrawal{
			OutBatchNo:          generateOutBatchNo(input.ElectricianID),
			ElectricianID:       input.ElectricianID,
			Amount:              amount,
			Status:              constants.WithdrawalStatusPending,
			OpenID:              user.OpenID,
			RealName:            cert.RealName,
			SnapshotTotalIncome: balance.TotalIncome,
			SnapshotWithdrawn:   balance.WithdrawnAmount,
			SnapshotAvailable:   balance.AvailableBalance,
		}
		if err := withdrawalRepo.Create(withdrawal); err != nil {
			return ErrWithdrawalCreateFailed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log = withdrawalLogger("out_batch_no", withdrawal.OutBatchNo)
	log.Infow("withdrawal_created", "snapshot_available", withdrawal.SnapshotAvailable.String())

	result, gatewayErr := wechatpay.CreateTransfer(input.Context, s.wechatCfg, wechatpay.TransferInput{
		OutBatchNo: withdrawal.OutBatchNo,
		OpenID:     withdrawal.OpenID,
		Amount:     withdrawal.Amount.String(),
		RealName:   withdrawal.RealName,
	})
	if gatewayErr != nil {
		// 网关失败置终态，锁定金额随之释放
		updates := map[string]interface{}{
			"status":      constants.WithdrawalStatusFailed,
			"fail_reason": truncateFailReason(gatewayErr),
		}
		if _, markErr := s.withdrawalRepo.UpdateStatusFrom(withdrawal.OutBatchNo, constants.WithdrawalStatusPending, updates); markErr != nil {
			log.Errorw("withdrawal_mark_failed_save_failed", "error", markErr)
		}
		withdrawal.Status = constants.WithdrawalStatusFailed
		withdrawal.FailReason = truncateFailReason(gatewayErr)
		log.Warnw("withdrawal_gateway_failed", "error", gatewayErr)
		return nil, mapWechatGatewayError(gatewayErr)
	}

	updates := map[string]interface{}{
		"status":           constants.WithdrawalStatusProcessing,
		"transfer_bill_no": result.TransferBillNo,
		"package_info":     result.PackageInfo,
	}
	rows, err := s.withdrawalRepo.UpdateStatusFrom(withdrawal.OutBatchNo, constants.WithdrawalStatusPending, updates)
	if err != nil {
		log.Errorw("withdrawal_mark_processing_failed", "error", err)
		return nil, ErrWithdrawalUpdateFailed
	}
	if rows > 0 {
		withdrawal.Status = constants.WithdrawalStatusProcessing
		withdrawal.TransferBillNo = result.TransferBillNo
		withdrawal.PackageInfo = result.PackageInfo
	}

	if err := s.queueClient.EnqueueWithdrawalRequery(queue.WithdrawalRequeryPayload{
		OutBatchNo: withdrawal.OutBatchNo,
	}, withdrawalRequeryDelay); err != nil {
		log.Warnw("withdrawal_requery_enqueue_failed", "error", err)
	}

	log.Infow("withdrawal_transfer_accepted",
		"transfer_bill_no", result.TransferBillNo,
		"state", result.State,
	)
	return withdrawal, nil
}

// CancelWithdrawal 撤销提现。终态直接返回现状，待确认的转账先撤微信单再落本地。
func (s *WithdrawalService) CancelWithdrawal(ctx context.Context, outBatchNo string, electricianID uint) (*models.Withdrawal, error) {
	log := withdrawalLogger(
		"out_batch_no", outBatchNo,
		"electrician_id", electricianID,
	)
	withdrawal, err := s.withdrawalRepo.GetByOutBatchNo(strings.TrimSpace(outBatchNo))
	if err != nil {
		return nil, ErrWithdrawalFetchFailed
	}
	if withdrawal == nil {
		return nil, ErrWithdrawalNotFound
	}
	if electricianID != 0 && withdrawal.ElectricianID != electricianID {
		return nil, ErrWithdrawalAccessDenied
	}
	// 终态幂等：不再触达网关
	if constants.IsWithdrawalStatusTerminal(withdrawal.Status) {
		log.Infow("withdrawal_cancel_idempotent", "status", withdrawal.Status)
		return withdrawal, nil
	}

	// 还未成功下单的提现直接本地撤销
	if withdrawal.Status == constants.WithdrawalStatusPending || strings.TrimSpace(withdrawal.TransferBillNo) == "" {
		return s.applyTransferStatus(withdrawal, constants.WithdrawalStatusCancelled, "", "用户撤销", nil)
	}

	// 撤销以用户意图为准：网关撤单失败只记录，本地仍落撤销态，
	// 后续回调或补偿查询若报成功会被终态守卫拦下
	transferBillNo := ""
	result, gatewayErr := wechatpay.CancelTransfer(ctx, s.wechatCfg, withdrawal.OutBatchNo)
	if gatewayErr != nil {
		log.Warnw("withdrawal_cancel_gateway_failed", "error", gatewayErr)
	} else {
		log.Infow("withdrawal_cancel_accepted", "state", result.State)
		transferBillNo = result.TransferBillNo
	}
	return s.applyTransferStatus(withdrawal, constants.WithdrawalStatusCancelled, transferBillNo, "用户撤销", nil)
}

// QueryWithdrawalStatus 查询提现状态。以本地状态为准，网关结果用于补偿漏单。
func (s *WithdrawalService) QueryWithdrawalStatus(ctx context.Context, outBatchNo string, electricianID uint) (*WithdrawalStatusResult, error) {
	withdrawal, err := s.withdrawalRepo.GetByOutBatchNo(strings.TrimSpace(outBatchNo))
	if err != nil {
		return nil, ErrWithdrawalFetchFailed
	}
	if withdrawal == nil {
		return nil, ErrWithdrawalNotFound
	}
	if electricianID != 0 && withdrawal.ElectricianID != electricianID {
		return nil, ErrWithdrawalAccessDenied
	}

	result := &WithdrawalStatusResult{Withdrawal: withdrawal}
	if constants.IsWithdrawalStatusTerminal(withdrawal.Status) {
		return result, nil
	}

	gateway, err := wechatpay.QueryTransferByOutBatchNo(ctx, s.wechatCfg, withdrawal.OutBatchNo)
	if err != nil {
		// 网关查询失败不影响本地状态返回
		result.GatewayError = err.Error()
		withdrawalLogger("out_batch_no", withdrawal.OutBatchNo).Warnw("withdrawal_query_gateway_failed", "error", err)
		return result, nil
	}
	result.Gateway = gateway

	if gateway.Status != withdrawal.Status {
		updated, applyErr := s.applyTransferStatus(withdrawal, gateway.Status, gateway.TransferBillNo, gateway.FailReason, nil)
		if applyErr != nil {
			withdrawalLogger("out_batch_no", withdrawal.OutBatchNo).Warnw("withdrawal_query_sync_failed", "error", applyErr)
			return result, nil
		}
		result.Withdrawal = updated
	}
	return result, nil
}

// ListWithdrawals 分页查询提现记录
func (s *WithdrawalService) ListWithdrawals(filter repository.WithdrawalListFilter) ([]models.Withdrawal, int64, error) {
	return s.withdrawalRepo.List(filter)
}

// GetBalance 查询电工账目
func (s *WithdrawalService) GetBalance(electricianID uint) (*Balance, error) {
	if electricianID == 0 {
		return nil, ErrUserNotFound
	}
	return s.balanceSvc.CalculateBalance(electricianID, nil)
}
