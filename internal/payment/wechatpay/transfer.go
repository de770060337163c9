package wechatpay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dianxiu-server/internal/constants"

	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

const transferBillsPath = "/v3/fund-app/mch-transfer/transfer-bills"

// TransferInput 发起商家转账输入。
type TransferInput struct {
	OutBatchNo string
	OpenID     string
	Amount     string
	RealName   string
	Remark     string
	NotifyURL  string
}

// TransferResult 商家转账单返回。
type TransferResult struct {
	TransferBillNo string
	State          string
	Status         string
	PackageInfo    string
	FailReason     string
	Raw            map[string]interface{}
}

// TransferWebhookResult 商家转账回调验签解密后返回。
type TransferWebhookResult struct {
	EventType      string
	OutBatchNo     string
	TransferBillNo string
	State          string
	Status         string
	FailReason     string
	UpdatedAt      *time.Time
	Raw            map[string]interface{}
}

type transferNotifyResource struct {
	MchID          string `json:"mch_id"`
	OutBillNo      string `json:"out_bill_no"`
	TransferBillNo string `json:"transfer_bill_no"`
	State          string `json:"state"`
	FailReason     string `json:"fail_reason"`
	UpdateTime     string `json:"update_time"`
	TransferAmount int64  `json:"transfer_amount"`
}

// CreateTransfer 发起商家转账（提现打款）。
func CreateTransfer(ctx context.Context, cfg *Config, input TransferInput) (*TransferResult, error) {
	if err := validateBaseConfig(cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.OutBatchNo) == "" {
		return nil, fmt.Errorf("%w: out_batch_no is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(input.OpenID) == "" {
		return nil, fmt.Errorf("%w: openid is required", ErrConfigInvalid)
	}
	amountFen, err := convertAmountToFen(input.Amount)
	if err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	client, err := createAPIClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	notifyURL := strings.TrimSpace(input.NotifyURL)
	if notifyURL == "" {
		notifyURL = cfg.TransferNotifyURL
	}

	payload := map[string]interface{}{
		"appid":             cfg.AppID,
		"out_bill_no":       input.OutBatchNo,
		"transfer_scene_id": cfg.TransferSceneID,
		"openid":            strings.TrimSpace(input.OpenID),
		"transfer_amount":   amountFen,
		"transfer_remark":   buildTransferRemark(input.Remark),
	}
	if notifyURL != "" {
		payload["notify_url"] = notifyURL
	}

	header := http.Header{}
	if realName := strings.TrimSpace(input.RealName); realName != "" {
		encrypted, serialNo, encErr := encryptSensitiveField(cfg, realName)
		if encErr != nil {
			return nil, encErr
		}
		payload["user_name"] = encrypted
		header.Set("Wechatpay-Serial", serialNo)
	}

	requestURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/") + transferBillsPath
	result, err := client.Request(ctx, http.MethodPost, requestURL, header, nil, payload, "application/json")
	if err != nil {
		return nil, wrapRequestError(err)
	}
	raw, err := parseAPIResult(result)
	if err != nil {
		return nil, err
	}
	return parseTransferResult(raw, input.OutBatchNo)
}

// QueryTransferByOutBatchNo 根据商户提现单号查询转账状态。
func QueryTransferByOutBatchNo(ctx context.Context, cfg *Config, outBatchNo string) (*TransferResult, error) {
	if err := validateBaseConfig(cfg); err != nil {
		return nil, err
	}
	outBatchNo = strings.TrimSpace(outBatchNo)
	if outBatchNo == "" {
		return nil, fmt.Errorf("%w: out_batch_no is required", ErrConfigInvalid)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := createAPIClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	requestURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/") +
		transferBillsPath + "/out-bill-no/" + url.PathEscape(outBatchNo)

	raw, err := doGetJSON(ctx, client, requestURL)
	if err != nil {
		return nil, err
	}
	return parseTransferResult(raw, outBatchNo)
}

// CancelTransfer 撤销商家转账（仅限未确认收款的转账单）。
func CancelTransfer(ctx context.Context, cfg *Config, outBatchNo string) (*TransferResult, error) {
	if err := validateBaseConfig(cfg); err != nil {
		return nil, err
	}
	outBatchNo = strings.TrimSpace(outBatchNo)
	if outBatchNo == "" {
		return nil, fmt.Errorf("%w: out_batch_no is required", ErrConfigInvalid)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	client, err := createAPIClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	requestURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/") +
		transferBillsPath + "/out-bill-no/" + url.PathEscape(outBatchNo) + "/cancel"

	raw, err := doPostJSON(ctx, client, requestURL, map[string]interface{}{})
	if err != nil {
		return nil, err
	}
	return parseTransferResult(raw, outBatchNo)
}

// VerifyAndDecodeTransferWebhook 验签并解密商家转账回调。
func VerifyAndDecodeTransferWebhook(ctx context.Context, cfg *Config, headers map[string]string, body []byte) (*TransferWebhookResult, error) {
	handler, raw, err := prepareNotifyHandler(ctx, cfg, body)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	content := new(transferNotifyResource)
	notifyReq, err := parseNotifyRequest(ctx, handler, headers, body, content)
	if err != nil {
		return nil, err
	}
	state := strings.ToUpper(strings.TrimSpace(content.State))
	status, ok := ToWithdrawalStatus(state)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported transfer state", ErrResponseInvalid)
	}

	return &TransferWebhookResult{
		EventType:      strings.TrimSpace(notifyReq.EventType),
		OutBatchNo:     strings.TrimSpace(content.OutBillNo),
		TransferBillNo: strings.TrimSpace(content.TransferBillNo),
		State:          state,
		Status:         status,
		FailReason:     strings.TrimSpace(content.FailReason),
		UpdatedAt:      parseTransactionTime(content.UpdateTime),
		Raw:            raw,
	}, nil
}

// ToWithdrawalStatus 将微信转账单状态映射到系统提现状态。
func ToWithdrawalStatus(state string) (string, bool) {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "ACCEPTED", "PROCESSING", "WAIT_USER_CONFIRM", "TRANSFERING":
		return constants.WithdrawalStatusProcessing, true
	case "SUCCESS":
		return constants.WithdrawalStatusSuccess, true
	case "FAIL":
		return constants.WithdrawalStatusFailed, true
	case "CANCELLING", "CANCELLED":
		return constants.WithdrawalStatusCancelled, true
	default:
		return "", false
	}
}

// IsTransferStateCancellable 转账单是否仍可撤销。
func IsTransferStateCancellable(state string) bool {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "ACCEPTED", "PROCESSING", "WAIT_USER_CONFIRM":
		return true
	default:
		return false
	}
}

func parseTransferResult(raw map[string]interface{}, fallbackOutBatchNo string) (*TransferResult, error) {
	state := strings.ToUpper(readString(raw, "state"))
	status, ok := ToWithdrawalStatus(state)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported transfer state", ErrResponseInvalid)
	}
	return &TransferResult{
		TransferBillNo: readString(raw, "transfer_bill_no"),
		State:          state,
		Status:         status,
		PackageInfo:    readString(raw, "package_info"),
		FailReason:     readString(raw, "fail_reason"),
		Raw:            raw,
	}, nil
}

func encryptSensitiveField(cfg *Config, plaintext string) (string, string, error) {
	if strings.TrimSpace(cfg.PlatformPublicKey) == "" || strings.TrimSpace(cfg.PlatformSerialNo) == "" {
		return "", "", fmt.Errorf("%w: platform public key is required for sensitive fields", ErrConfigInvalid)
	}
	publicKey, err := utils.LoadPublicKey(cfg.PlatformPublicKey)
	if err != nil {
		return "", "", fmt.Errorf("%w: load platform public key failed", ErrConfigInvalid)
	}
	encrypted, err := utils.EncryptOAEPWithPublicKey(plaintext, publicKey)
	if err != nil {
		return "", "", fmt.Errorf("%w: encrypt sensitive field failed", ErrConfigInvalid)
	}
	return encrypted, cfg.PlatformSerialNo, nil
}

func buildTransferRemark(remark string) string {
	remark = strings.TrimSpace(remark)
	if remark == "" {
		return "电工服务收入提现"
	}
	return remark
}
