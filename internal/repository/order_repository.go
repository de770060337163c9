package repository

import (
	"errors"

	"github.com/dianxiu-server/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(order *models.Order) error
	Update(order *models.Order) error
	GetByID(id uint) (*models.Order, error)
	GetByIDForUpdate(id uint) (*models.Order, error)
	GetByOrderNo(orderNo string) (*models.Order, error)
	UpdateStatusFrom(orderID uint, fromStatus, toStatus string) (int64, error)
	GetServiceType(id uint) (*models.ServiceType, error)
	CreateStatusLog(log *models.OrderStatusLog) error
	CountStatusLogs(orderID uint, toStatus string) (int64, error)
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// Update 更新订单
func (r *GormOrderRepository) Update(order *models.Order) error {
	return r.db.Save(order).Error
}

// GetByID 根据 ID 获取订单
func (r *GormOrderRepository) GetByID(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByIDForUpdate 根据 ID 获取订单并加行锁
func (r *GormOrderRepository) GetByIDForUpdate(id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo 根据订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	var order models.Order
	if err := r.db.Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatusFrom 以状态条件更新订单状态，返回影响行数
func (r *GormOrderRepository) UpdateStatusFrom(orderID uint, fromStatus, toStatus string) (int64, error) {
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, fromStatus).
		Update("status", toStatus)
	return result.RowsAffected, result.Error
}

// GetServiceType 获取服务类目（含预付金额配置）
func (r *GormOrderRepository) GetServiceType(id uint) (*models.ServiceType, error) {
	var serviceType models.ServiceType
	if err := r.db.First(&serviceType, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &serviceType, nil
}

// CreateStatusLog 写入订单状态流转记录
func (r *GormOrderRepository) CreateStatusLog(log *models.OrderStatusLog) error {
	return r.db.Create(log).Error
}

// CountStatusLogs 统计订单流转到指定状态的记录数
func (r *GormOrderRepository) CountStatusLogs(orderID uint, toStatus string) (int64, error) {
	var count int64
	if err := r.db.Model(&models.OrderStatusLog{}).
		Where("order_id = ? AND to_status = ?", orderID, toStatus).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
