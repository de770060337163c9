package service

import (
	"github.com/dianxiu-server/internal/constants"
	"github.com/dianxiu-server/internal/models"
	"github.com/dianxiu-server/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Balance 电工账目汇总
type Balance struct {
	TotalIncome      models.Money `json:"total_income"`
	WithdrawnAmount  models.Money `json:"withdrawn_amount"`
	LockedAmount     models.Money `json:"locked_amount"`
	AvailableBalance models.Money `json:"available_balance"`
}

// BalanceService 电工收入与可提现余额计算
type BalanceService struct {
	paymentRepo    repository.PaymentRepository
	withdrawalRepo repository.WithdrawalRepository
}

// NewBalanceService 创建余额服务
func NewBalanceService(
	paymentRepo repository.PaymentRepository,
	withdrawalRepo repository.WithdrawalRepository,
) *BalanceService {
	return &BalanceService{
		paymentRepo:    paymentRepo,
		withdrawalRepo: withdrawalRepo,
	}
}

// CalculateBalance 计算电工账目。收入口径：已完成且获得五星好评的订单下，
// 已支付成功的预付款与维修款。tx 不为空时在事务内读取，
// 供提现扣减前的一致性校验使用。
func (s *BalanceService) CalculateBalance(electricianID uint, tx *gorm.DB) (*Balance, error) {
	paymentRepo := s.paymentRepo
	withdrawalRepo := s.withdrawalRepo
	if tx != nil {
		paymentRepo = paymentRepo.WithTx(tx)
		withdrawalRepo = withdrawalRepo.WithTx(tx)
	}

	payments, err := paymentRepo.ListIncomePayments(electricianID)
	if err != nil {
		return nil, err
	}
	totalIncome := decimal.Zero
	for _, payment := range payments {
		totalIncome = totalIncome.Add(payment.Amount.Decimal)
	}

	withdrawals, err := withdrawalRepo.ListByElectricianAndStatuses(electricianID, []string{
		constants.WithdrawalStatusPending,
		constants.WithdrawalStatusProcessing,
		constants.WithdrawalStatusSuccess,
	})
	if err != nil {
		return nil, err
	}
	withdrawn := decimal.Zero
	locked := decimal.Zero
	for _, withdrawal := range withdrawals {
		switch withdrawal.Status {
		case constants.WithdrawalStatusSuccess:
			withdrawn = withdrawn.Add(withdrawal.Amount.Decimal)
		case constants.WithdrawalStatusPending, constants.WithdrawalStatusProcessing:
			locked = locked.Add(withdrawal.Amount.Decimal)
		}
	}

	available := totalIncome.Sub(withdrawn).Sub(locked)
	if available.IsNegative() {
		available = decimal.Zero
	}

	return &Balance{
		TotalIncome:      models.NewMoneyFromDecimal(totalIncome),
		WithdrawnAmount:  models.NewMoneyFromDecimal(withdrawn),
		LockedAmount:     models.NewMoneyFromDecimal(locked),
		AvailableBalance: models.NewMoneyFromDecimal(available),
	}, nil
}
