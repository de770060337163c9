package service

import "errors"

var (
	ErrOrderNotFound           = errors.New("订单不存在")
	ErrOrderFetchFailed        = errors.New("订单查询失败")
	ErrOrderStatusInvalid      = errors.New("订单状态不允许该操作")
	ErrOrderUpdateFailed       = errors.New("订单更新失败")
	ErrOrderAccessDenied       = errors.New("无权访问该订单")

	ErrPaymentNotFound         = errors.New("支付单不存在")
	ErrPaymentFetchFailed      = errors.New("支付单查询失败")
	ErrPaymentCreateFailed     = errors.New("支付单创建失败")
	ErrPaymentUpdateFailed     = errors.New("支付单更新失败")
	ErrPaymentAmountInvalid    = errors.New("支付金额不合法")
	ErrPaymentAmountMismatch   = errors.New("支付金额与回调金额不一致")
	ErrPaymentProviderFailed   = errors.New("支付网关请求失败")
	ErrPaymentAccessDenied     = errors.New("无权访问该支付单")
	ErrPaymentNotRefundable    = errors.New("支付单不满足退款条件")
	ErrRefundCreateFailed      = errors.New("退款申请失败")

	ErrWebhookInvalid          = errors.New("回调报文不合法")

	ErrWithdrawalNotFound       = errors.New("提现单不存在")
	ErrWithdrawalFetchFailed    = errors.New("提现单查询失败")
	ErrWithdrawalCreateFailed   = errors.New("提现单创建失败")
	ErrWithdrawalUpdateFailed   = errors.New("提现单更新失败")
	ErrWithdrawalAccessDenied   = errors.New("无权访问该提现单")
	ErrWithdrawalAmountTooSmall = errors.New("提现金额低于最低限额")
	ErrWithdrawalInsufficient   = errors.New("可提现余额不足")
	ErrWithdrawalInProgress     = errors.New("存在进行中的提现单")
	ErrWithdrawalNotCertified   = errors.New("电工未完成实名认证")

	ErrGatewayRateLimited = errors.New("网关请求频率超限，请稍后再试")

	ErrUserTokenSecretMissing = errors.New("令牌密钥未配置")
	ErrUserNotFound        = errors.New("用户不存在")
	ErrUserRoleInvalid     = errors.New("用户角色不允许该操作")

	ErrNotificationNotFound = errors.New("通知不存在")
)
