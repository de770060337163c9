package repository

import (
	"errors"

	"github.com/dianxiu-server/internal/constants"
	"github.com/dianxiu-server/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithdrawalRepository 提现数据访问接口
type WithdrawalRepository interface {
	Create(withdrawal *models.Withdrawal) error
	Update(withdrawal *models.Withdrawal) error
	GetByOutBatchNo(outBatchNo string) (*models.Withdrawal, error)
	GetByOutBatchNoForUpdate(outBatchNo string) (*models.Withdrawal, error)
	ListByElectricianAndStatuses(electricianID uint, statuses []string) ([]models.Withdrawal, error)
	HasActiveByElectrician(electricianID uint) (bool, error)
	UpdateStatusFrom(outBatchNo, fromStatus string, updates map[string]interface{}) (int64, error)
	List(filter WithdrawalListFilter) ([]models.Withdrawal, int64, error)
	WithTx(tx *gorm.DB) *GormWithdrawalRepository
}

// GormWithdrawalRepository GORM 实现
type GormWithdrawalRepository struct {
	db *gorm.DB
}

// NewWithdrawalRepository 创建提现仓库
func NewWithdrawalRepository(db *gorm.DB) *GormWithdrawalRepository {
	return &GormWithdrawalRepository{db: db}
}

// WithTx 绑定事务
func (r *GormWithdrawalRepository) WithTx(tx *gorm.DB) *GormWithdrawalRepository {
	if tx == nil {
		return r
	}
	return &GormWithdrawalRepository{db: tx}
}

// Create 创建提现记录
func (r *GormWithdrawalRepository) Create(withdrawal *models.Withdrawal) error {
	return r.db.Create(withdrawal).Error
}

// Update 更新提现记录
func (r *GormWithdrawalRepository) Update(withdrawal *models.Withdrawal) error {
	return r.db.Save(withdrawal).Error
}

// GetByOutBatchNo 根据商户提现单号获取提现记录
func (r *GormWithdrawalRepository) GetByOutBatchNo(outBatchNo string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := r.db.Where("out_batch_no = ?", outBatchNo).First(&withdrawal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &withdrawal, nil
}

// GetByOutBatchNoForUpdate 根据商户提现单号获取提现记录并加行锁
func (r *GormWithdrawalRepository) GetByOutBatchNoForUpdate(outBatchNo string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("out_batch_no = ?", outBatchNo).First(&withdrawal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &withdrawal, nil
}

// ListByElectricianAndStatuses 查询电工在指定状态下的提现记录
func (r *GormWithdrawalRepository) ListByElectricianAndStatuses(electricianID uint, statuses []string) ([]models.Withdrawal, error) {
	if len(statuses) == 0 {
		return []models.Withdrawal{}, nil
	}
	var withdrawals []models.Withdrawal
	if err := r.db.Where("electrician_id = ? AND status IN ?", electricianID, statuses).
		Find(&withdrawals).Error; err != nil {
		return nil, err
	}
	return withdrawals, nil
}

// HasActiveByElectrician 判断电工是否存在未终态的提现记录
func (r *GormWithdrawalRepository) HasActiveByElectrician(electricianID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Withdrawal{}).
		Where("electrician_id = ? AND status IN ?", electricianID,
			[]string{constants.WithdrawalStatusPending, constants.WithdrawalStatusProcessing}).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateStatusFrom 以状态条件更新提现记录，返回影响行数
func (r *GormWithdrawalRepository) UpdateStatusFrom(outBatchNo, fromStatus string, updates map[string]interface{}) (int64, error) {
	result := r.db.Model(&models.Withdrawal{}).
		Where("out_batch_no = ? AND status = ?", outBatchNo, fromStatus).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// List 分页查询提现记录
func (r *GormWithdrawalRepository) List(filter WithdrawalListFilter) ([]models.Withdrawal, int64, error) {
	query := r.db.Model(&models.Withdrawal{})
	if filter.ElectricianID > 0 {
		query = query.Where("electrician_id = ?", filter.ElectricianID)
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

	var withdrawals []models.Withdrawal
	if err := applyPagination(query.Order("id DESC"), filter.Page, filter.PageSize).Find(&withdrawals).Error; err != nil {
		return nil, 0, err
	}
	return withdrawals, total, nil
}
