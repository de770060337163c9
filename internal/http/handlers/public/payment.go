package public

import (
	"strings"

	"github.com/dianxiu-server/internal/http/response"
	handlershared "github.com/dianxiu-server/internal/http/handlers/shared"
	"github.com/dianxiu-server/internal/repository"
	"github.com/dianxiu-server/internal/service"

	"github.com/gin-gonic/gin"
)

// CreatePaymentRequest 创建支付请求
type CreatePaymentRequest struct {
	OrderID uint   `json:"order_id" binding:"required"`
	Type    string `json:"type" binding:"required"`
}

// RefundRequest 申请退款请求
type RefundRequest struct {
	Reason string `json:"reason"`
}

// PaymentListQuery 支付记录查询参数
type PaymentListQuery struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	OrderID  uint   `form:"order_id"`
	Type     string `form:"type"`
	Status   string `form:"status"`
}

// CreatePayment 创建支付单并返回 JSAPI 调起参数
func (h *Handler) CreatePayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	result, err := h.PaymentService.CreatePayment(service.CreatePaymentInput{
		OrderID: req.OrderID,
		UserID:  uid,
		Type:    req.Type,
		Context: c.Request.Context(),
	})
	if err != nil {
		respondWithMappedError(c, err, paymentErrorRules, "创建支付失败")
		return
	}

	response.Success(c, gin.H{
		"payment":    result.Payment,
		"pay_params": result.PayParams,
		"reused":     result.Reused,
	})
}

// GetPayment 查询支付状态
func (h *Handler) GetPayment(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	outTradeNo := strings.TrimSpace(c.Param("out_trade_no"))
	if outTradeNo == "" {
		respondError(c, response.CodeBadRequest, "商户单号无效", nil)
		return
	}

	result, err := h.PaymentService.QueryPaymentStatus(c.Request.Context(), outTradeNo, uid)
	if err != nil {
		respondWithMappedError(c, err, paymentErrorRules, "查询支付失败")
		return
	}

	resp := gin.H{"payment": result.Payment}
	if result.GatewayError != "" {
		resp["gateway_error"] = result.GatewayError
	}
	response.Success(c, resp)
}

// ListPayments 分页查询支付记录
func (h *Handler) ListPayments(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	var query PaymentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}
	page, pageSize := handlershared.NormalizePagination(query.Page, query.PageSize)

	payments, total, err := h.PaymentService.ListPayments(repository.PaymentListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uid,
		OrderID:  query.OrderID,
		Type:     query.Type,
		Status:   query.Status,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询支付记录失败", err)
		return
	}

	response.SuccessWithPage(c, payments, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// RequestRefund 对已取消订单的支付单申请退款
func (h *Handler) RequestRefund(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	outTradeNo := strings.TrimSpace(c.Param("out_trade_no"))
	if outTradeNo == "" {
		respondError(c, response.CodeBadRequest, "商户单号无效", nil)
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	payment, err := h.PaymentService.RequestRefund(service.RefundRequestInput{
		OutTradeNo: outTradeNo,
		UserID:     uid,
		Reason:     req.Reason,
		Context:    c.Request.Context(),
	})
	if err != nil {
		respondWithMappedError(c, err, paymentErrorRules, "申请退款失败")
		return
	}
	response.Success(c, payment)
}
