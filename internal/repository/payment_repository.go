package repository

import (
	"errors"

	"github.com/dianxiu-server/internal/constants"
	"github.com/dianxiu-server/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	Update(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	GetByOutTradeNo(outTradeNo string) (*models.Payment, error)
	GetByOutTradeNoForUpdate(outTradeNo string) (*models.Payment, error)
	GetByOutRefundNo(outRefundNo string) (*models.Payment, error)
	GetLatestPendingByOrderType(orderID uint, paymentType string) (*models.Payment, error)
	UpdateStatusFrom(outTradeNo, fromStatus string, updates map[string]interface{}) (int64, error)
	ListIncomePayments(electricianID uint) ([]models.Payment, error)
	List(filter PaymentListFilter) ([]models.Payment, int64, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// Update 更新支付记录
func (r *GormPaymentRepository) Update(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

// GetByID 根据 ID 获取支付记录
func (r *GormPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByOutTradeNo 根据商户订单号获取支付记录
func (r *GormPaymentRepository) GetByOutTradeNo(outTradeNo string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("out_trade_no = ?", outTradeNo).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByOutTradeNoForUpdate 根据商户订单号获取支付记录并加行锁
func (r *GormPaymentRepository) GetByOutTradeNoForUpdate(outTradeNo string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("out_trade_no = ?", outTradeNo).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByOutRefundNo 根据商户退款单号获取支付记录
func (r *GormPaymentRepository) GetByOutRefundNo(outRefundNo string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("out_refund_no = ?", outRefundNo).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetLatestPendingByOrderType 获取订单在指定支付类型下最新的待支付记录
func (r *GormPaymentRepository) GetLatestPendingByOrderType(orderID uint, paymentType string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("order_id = ? AND type = ? AND status = ?", orderID, paymentType, constants.PaymentStatusPending).
		Order("id DESC").First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// UpdateStatusFrom 以状态条件更新支付记录，返回影响行数
func (r *GormPaymentRepository) UpdateStatusFrom(outTradeNo, fromStatus string, updates map[string]interface{}) (int64, error) {
	result := r.db.Model(&models.Payment{}).
		Where("out_trade_no = ? AND status = ?", outTradeNo, fromStatus).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// ListIncomePayments 查询电工计入收入的支付记录：
// 已完成且有五星好评的订单下，已成功的预付款与维修款
func (r *GormPaymentRepository) ListIncomePayments(electricianID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.
		Joins("JOIN orders ON orders.id = payments.order_id").
		Where("orders.electrician_id = ? AND orders.status = ?", electricianID, constants.OrderStatusCompleted).
		Where("EXISTS (SELECT 1 FROM reviews WHERE reviews.order_id = orders.id AND reviews.rating = ?)",
			constants.ReviewRatingMax).
		Where("payments.status = ?", constants.PaymentStatusSuccess).
		Where("payments.type IN ?", []string{constants.PaymentTypePrepay, constants.PaymentTypeRepair}).
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// List 分页查询支付记录
func (r *GormPaymentRepository) List(filter PaymentListFilter) ([]models.Payment, int64, error) {
	query := r.db.Model(&models.Payment{})
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.OrderID > 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.Payment
	if err := applyPagination(query.Order("id DESC"), filter.Page, filter.PageSize).Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}
