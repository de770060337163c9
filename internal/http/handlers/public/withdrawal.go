package public

import (
	"strings"

	handlershared "github.com/dianxiu-server/internal/http/handlers/shared"
	"github.com/dianxiu-server/internal/http/response"
	"github.com/dianxiu-server/internal/models"
	"github.com/dianxiu-server/internal/repository"
	"github.com/dianxiu-server/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateWithdrawalRequest 发起提现请求。金额缺省时按可提现余额全额提现。
type CreateWithdrawalRequest struct {
	Amount string `json:"amount"`
}

// WithdrawalListQuery 提现记录查询参数
type WithdrawalListQuery struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
}

// CreateWithdrawal 发起提现
func (h *Handler) CreateWithdrawal(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	var amount models.Money
	if strings.TrimSpace(req.Amount) != "" {
		parsed, err := models.NewMoneyFromString(req.Amount)
		if err != nil || !parsed.Decimal.IsPositive() {
			respondError(c, response.CodeBadRequest, "提现金额无效", err)
			return
		}
		amount = parsed
	}

	withdrawal, err := h.WithdrawalService.CreateWithdrawal(service.CreateWithdrawalInput{
		ElectricianID: uid,
		Amount:        amount,
		Context:       c.Request.Context(),
	})
	if err != nil {
		respondWithMappedError(c, err, withdrawalErrorRules, "发起提现失败")
		return
	}
	response.Success(c, withdrawal)
}

// GetWithdrawal 查询提现状态
func (h *Handler) GetWithdrawal(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	outBatchNo := strings.TrimSpace(c.Param("out_batch_no"))
	if outBatchNo == "" {
		respondError(c, response.CodeBadRequest, "提现单号无效", nil)
		return
	}

	result, err := h.WithdrawalService.QueryWithdrawalStatus(c.Request.Context(), outBatchNo, uid)
	if err != nil {
		respondWithMappedError(c, err, withdrawalErrorRules, "查询提现失败")
		return
	}

	resp := gin.H{"withdrawal": result.Withdrawal}
	if result.GatewayError != "" {
		resp["gateway_error"] = result.GatewayError
	}
	response.Success(c, resp)
}

// ListWithdrawals 分页查询提现记录
func (h *Handler) ListWithdrawals(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var query WithdrawalListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	page, pageSize := handlershared.NormalizePagination(query.Page, query.PageSize)

	withdrawals, total, err := h.WithdrawalService.ListWithdrawals(repository.WithdrawalListFilter{
		Page:          page,
		PageSize:      pageSize,
		ElectricianID: uid,
		Status:        query.Status,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询提现记录失败", err)
		return
	}

	response.SuccessWithPage(c, withdrawals, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// CancelWithdrawal 撤销待确认的提现
func (h *Handler) CancelWithdrawal(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	outBatchNo := strings.TrimSpace(c.Param("out_batch_no"))
	if outBatchNo == "" {
		respondError(c, response.CodeBadRequest, "提现单号无效", nil)
		return
	}

	withdrawal, err := h.WithdrawalService.CancelWithdrawal(c.Request.Context(), outBatchNo, uid)
	if err != nil {
		respondWithMappedError(c, err, withdrawalErrorRules, "撤销提现失败")
		return
	}
	response.Success(c, withdrawal)
}

// GetBalance 查询电工账目与可提现余额
func (h *Handler) GetBalance(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	balance, err := h.WithdrawalService.GetBalance(uid)
	if err != nil {
		respondWithMappedError(c, err, withdrawalErrorRules, "查询余额失败")
		return
	}
	response.Success(c, balance)
}
