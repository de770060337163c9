package public

import (
	"errors"
	"io"
	"net/http"

	"github.com/dianxiu-server/internal/service"

	"github.com/gin-gonic/gin"
)

// readCallback 读取回调原文并收敛首值请求头
func readCallback(c *gin.Context) (map[string]string, []byte, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		requestLog(c).Warnw("callback_body_read_failed", "error", err)
		respondCallback(c, http.StatusBadRequest, false)
		return nil, nil, false
	}
	headers := make(map[string]string, len(c.Request.Header))
	for key, values := range c.Request.Header {
		if len(values) == 0 {
			continue
		}
		headers[key] = values[0]
	}
	return headers, body, true
}

// respondCallback 按微信回调应答约定返回
func respondCallback(c *gin.Context, httpStatus int, success bool) {
	if success {
		c.JSON(http.StatusOK, gin.H{
			"code":    "SUCCESS",
			"message": "成功",
		})
		return
	}
	c.JSON(httpStatus, gin.H{
		"code":    "FAIL",
		"message": "失败",
	})
}

func callbackFailureStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrWebhookInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrPaymentNotFound), errors.Is(err, service.ErrWithdrawalNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PaymentCallback 微信支付结果回调
func (h *Handler) PaymentCallback(c *gin.Context) {
	headers, body, ok := readCallback(c)
	if !ok {
		return
	}
	log := requestLog(c)
	log.Infow("payment_callback_received", "body_size", len(body), "client_ip", c.ClientIP())

	payment, eventType, err := h.PaymentService.HandlePaymentWebhook(service.WebhookInput{
		Headers: headers,
		Body:    body,
		Context: c.Request.Context(),
	})
	if err != nil {
		log.Warnw("payment_callback_handle_failed", "event_type", eventType, "error", err)
		respondCallback(c, callbackFailureStatus(err), false)
		return
	}
	log.Infow("payment_callback_processed",
		"event_type", eventType,
		"out_trade_no", payment.OutTradeNo,
		"status", payment.Status,
	)
	respondCallback(c, http.StatusOK, true)
}

// RefundCallback 微信退款结果回调
func (h *Handler) RefundCallback(c *gin.Context) {
	headers, body, ok := readCallback(c)
	if !ok {
		return
	}
	log := requestLog(c)
	log.Infow("refund_callback_received", "body_size", len(body), "client_ip", c.ClientIP())

	payment, eventType, err := h.PaymentService.HandleRefundWebhook(service.WebhookInput{
		Headers: headers,
		Body:    body,
		Context: c.Request.Context(),
	})
	if err != nil {
		log.Warnw("refund_callback_handle_failed", "event_type", eventType, "error", err)
		respondCallback(c, callbackFailureStatus(err), false)
		return
	}
	log.Infow("refund_callback_processed",
		"event_type", eventType,
		"out_trade_no", payment.OutTradeNo,
		"refund_status", payment.RefundStatus,
	)
	respondCallback(c, http.StatusOK, true)
}

// TransferCallback 微信商家转账结果回调
func (h *Handler) TransferCallback(c *gin.Context) {
	headers, body, ok := readCallback(c)
	if !ok {
		return
	}
	log := requestLog(c)
	log.Infow("transfer_callback_received", "body_size", len(body), "client_ip", c.ClientIP())

	withdrawal, eventType, err := h.WithdrawalService.HandleTransferWebhook(service.WebhookInput{
		Headers: headers,
		Body:    body,
		Context: c.Request.Context(),
	})
	if err != nil {
		log.Warnw("transfer_callback_handle_failed", "event_type", eventType, "error", err)
		respondCallback(c, callbackFailureStatus(err), false)
		return
	}
	log.Infow("transfer_callback_processed",
		"event_type", eventType,
		"out_batch_no", withdrawal.OutBatchNo,
		"status", withdrawal.Status,
	)
	respondCallback(c, http.StatusOK, true)
}
