package public

import (
	"errors"

	"github.com/dianxiu-server/internal/http/response"
	"github.com/dianxiu-server/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.target.Error(), nil)
			return
		}
	}
	respondError(c, response.CodeInternal, fallbackMsg, err)
}

var paymentErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound},
	{target: service.ErrOrderAccessDenied, code: response.CodeForbidden},
	{target: service.ErrOrderStatusInvalid, code: response.CodeBadRequest},
	{target: service.ErrPaymentNotFound, code: response.CodeNotFound},
	{target: service.ErrPaymentAccessDenied, code: response.CodeForbidden},
	{target: service.ErrPaymentAmountInvalid, code: response.CodeBadRequest},
	{target: service.ErrPaymentNotRefundable, code: response.CodeBadRequest},
	{target: service.ErrUserNotFound, code: response.CodeBadRequest},
	{target: service.ErrGatewayRateLimited, code: response.CodeTooManyRequests},
	{target: service.ErrPaymentProviderFailed, code: response.CodeInternal},
}

var withdrawalErrorRules = []mappedHandlerError{
	{target: service.ErrWithdrawalNotFound, code: response.CodeNotFound},
	{target: service.ErrWithdrawalAccessDenied, code: response.CodeForbidden},
	{target: service.ErrWithdrawalAmountTooSmall, code: response.CodeBadRequest},
	{target: service.ErrWithdrawalInsufficient, code: response.CodeBadRequest},
	{target: service.ErrWithdrawalInProgress, code: response.CodeBadRequest},
	{target: service.ErrWithdrawalNotCertified, code: response.CodeBadRequest},
	{target: service.ErrUserNotFound, code: response.CodeBadRequest},
	{target: service.ErrUserRoleInvalid, code: response.CodeForbidden},
	{target: service.ErrGatewayRateLimited, code: response.CodeTooManyRequests},
	{target: service.ErrPaymentProviderFailed, code: response.CodeInternal},
}
