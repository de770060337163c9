package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dianxiu-server/internal/constants"
	"github.com/dianxiu-server/internal/models"
	"github.com/dianxiu-server/internal/payment/wechatpay"
	"github.com/dianxiu-server/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newTestWithdrawalService(t *testing.T, db *gorm.DB, cfg *wechatpay.Config) *WithdrawalService {
	t.Helper()
	queueClient := newDisabledQueueClient(t)
	notificationSvc := NewNotificationService(repository.NewNotificationRepository(db), queueClient)
	return NewWithdrawalService(
		repository.NewWithdrawalRepository(db),
		repository.NewUserRepository(db),
		newBalanceService(db),
		notificationSvc,
		queueClient,
		cfg,
		models.NewMoneyFromDecimal(decimal.NewFromInt(1)),
	)
}

// seedElectricianIncome 造一个有 5 星收入的认证电工
func seedElectricianIncome(t *testing.T, db *gorm.DB, electricianID uint, income decimal.Decimal) {
	t.Helper()
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, electricianID, constants.UserRoleElectrician)
	createTestCertification(t, db, electricianID, constants.CertificationStatusApproved)
	order := createTestOrder(t, db, "ORD-INCOME", 1, electricianID, constants.OrderStatusCompleted, income)
	createTestReview(t, db, order.ID, 1, 5)
	createIncomePayment(t, db, fmt.Sprintf("PAY-INCOME-%d", electricianID), order.ID, 1,
		constants.PaymentTypeRepair, constants.PaymentStatusSuccess, income)
}

func newTransferMockServer(t *testing.T, hits *int64, state string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt64(hits, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"out_bill_no":      "stub",
			"transfer_bill_no": "TB10086",
			"state":            state,
			"package_info":     "affirm-package",
		})
	}))
}

func TestCreateWithdrawalSuccess(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))

	server := newTransferMockServer(t, nil, "WAIT_USER_CONFIRM")
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	withdrawal, err := svc.CreateWithdrawal(CreateWithdrawalInput{
		ElectricianID: 2,
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(200)),
		Context:       context.Background(),
	})
	if err != nil {
		t.Fatalf("create withdrawal failed: %v", err)
	}
	if withdrawal.Status != constants.WithdrawalStatusProcessing {
		t.Fatalf("accepted transfer should be processing, got: %s", withdrawal.Status)
	}
	if withdrawal.TransferBillNo != "TB10086" {
		t.Fatalf("unexpected transfer bill no: %s", withdrawal.TransferBillNo)
	}
	if withdrawal.PackageInfo != "affirm-package" {
		t.Fatalf("unexpected package info: %s", withdrawal.PackageInfo)
	}
	if withdrawal.SnapshotTotalIncome.String() != "500.00" {
		t.Fatalf("unexpected income snapshot: %s", withdrawal.SnapshotTotalIncome.String())
	}
	if withdrawal.SnapshotAvailable.String() != "500.00" {
		t.Fatalf("unexpected available snapshot: %s", withdrawal.SnapshotAvailable.String())
	}

	// 进行中的提现锁定可用余额
	balance, err := svc.GetBalance(2)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if balance.LockedAmount.String() != "200.00" {
		t.Fatalf("unexpected locked amount: %s", balance.LockedAmount.String())
	}
	if balance.AvailableBalance.String() != "300.00" {
		t.Fatalf("unexpected available balance: %s", balance.AvailableBalance.String())
	}
}

func TestCreateWithdrawalDefaultsToAvailableBalance(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(320))

	var gatewayHits int64
	server := newTransferMockServer(t, &gatewayHits, "ACCEPTED")
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	withdrawal, err := svc.CreateWithdrawal(CreateWithdrawalInput{
		ElectricianID: 2,
		Context:       context.Background(),
	})
	if err != nil {
		t.Fatalf("create withdrawal failed: %v", err)
	}
	if withdrawal.Amount.String() != "320.00" {
		t.Fatalf("expected full available balance 320.00, got: %s", withdrawal.Amount.String())
	}
}

func TestCreateWithdrawalBelowMinimum(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))

	amount, err := models.NewMoneyFromString("0.50")
	if err != nil {
		t.Fatalf("parse amount failed: %v", err)
	}
	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, ""))
	_, err = svc.CreateWithdrawal(CreateWithdrawalInput{
		ElectricianID: 2,
		Amount:        amount,
		Context:       context.Background(),
	})
	if !errors.Is(err, ErrWithdrawalAmountTooSmall) {
		t.Fatalf("expected amount too small, got: %v", err)
	}
}

func TestCreateWithdrawalInsufficientLeavesNoRow(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(100))

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, ""))
	_, err := svc.CreateWithdrawal(CreateWithdrawalInput{
		ElectricianID: 2,
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(200)),
		Context:       context.Background(),
	})
	if !errors.Is(err, ErrWithdrawalInsufficient) {
		t.Fatalf("expected insufficient balance, got: %v", err)
	}

	var count int64
	if err := db.Model(&models.Withdrawal{}).Count(&count).Error; err != nil {
		t.Fatalf("count withdrawals failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected withdrawal should leave no row, got: %d", count)
	}
}

func TestCreateWithdrawalRejectsActiveBeforeGateway(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))
	createTestWithdrawal(t, db, "WD-ACTIVE", 2, constants.WithdrawalStatusProcessing, decimal.NewFromInt(100))

	var gatewayHits int64
	server := newTransferMockServer(t, &gatewayHits, "WAIT_USER_CONFIRM")
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	_, err := svc.CreateWithdrawal(CreateWithdrawalInput{
		ElectricianID: 2,
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		Context:       context.Background(),
	})
	if !errors.Is(err, ErrWithdrawalInProgress) {
		t.Fatalf("expected in-progress rejection, got: %v", err)
	}
	if atomic.LoadInt64(&gatewayHits) != 0 {
		t.Fatalf("rejection should happen before gateway, hits: %d", gatewayHits)
	}
}

func TestCreateWithdrawalRequiresApprovedCertification(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	createTestCertification(t, db, 2, constants.CertificationStatusPending)
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusCompleted, decimal.NewFromInt(500))
	createTestReview(t, db, order.ID, 1, 5)

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, ""))
	_, err := svc.CreateWithdrawal(CreateWithdrawalInput{
		ElectricianID: 2,
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		Context:       context.Background(),
	})
	if !errors.Is(err, ErrWithdrawalNotCertified) {
		t.Fatalf("expected not certified, got: %v", err)
	}
}

func TestCreateWithdrawalRequiresCertifiedRealName(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	cert := models.Certification{
		ElectricianID: 2,
		RealName:      "  ",
		IDNumber:      "110101199001011234",
		Status:        constants.CertificationStatusApproved,
	}
	if err := db.Create(&cert).Error; err != nil {
		t.Fatalf("create certification failed: %v", err)
	}
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusCompleted, decimal.NewFromInt(500))
	createTestReview(t, db, order.ID, 1, 5)

	var gatewayHits int64
	server := newTransferMockServer(t, &gatewayHits, "WAIT_USER_CONFIRM")
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	_, err := svc.CreateWithdrawal(CreateWithdrawalInput{
		ElectricianID: 2,
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		Context:       context.Background(),
	})
	if !errors.Is(err, ErrWithdrawalNotCertified) {
		t.Fatalf("blank real name should be rejected as not certified, got: %v", err)
	}
	if atomic.LoadInt64(&gatewayHits) != 0 {
		t.Fatalf("rejection should happen before gateway, hits: %d", gatewayHits)
	}
}

func TestCreateWithdrawalGatewayFailureReleasesLock(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "SYSTEM_ERROR", "message": "系统繁忙"})
	}))
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	_, err := svc.CreateWithdrawal(CreateWithdrawalInput{
		ElectricianID: 2,
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(200)),
		Context:       context.Background(),
	})
	if !errors.Is(err, ErrPaymentProviderFailed) {
		t.Fatalf("expected provider failure, got: %v", err)
	}

	var stored models.Withdrawal
	if err := db.First(&stored, "electrician_id = ?", 2).Error; err != nil {
		t.Fatalf("load withdrawal failed: %v", err)
	}
	if stored.Status != constants.WithdrawalStatusFailed {
		t.Fatalf("gateway failure should mark failed, got: %s", stored.Status)
	}
	if stored.FailReason == "" {
		t.Fatal("fail reason should be recorded")
	}

	// 失败终态不再占用余额
	balance, err := svc.GetBalance(2)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	if balance.AvailableBalance.String() != "500.00" {
		t.Fatalf("failed withdrawal should release balance, got: %s", balance.AvailableBalance.String())
	}
}

func TestCreateWithdrawalRateLimited(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "FREQUENCY_LIMITED", "message": "请求频率超限"})
	}))
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	_, err := svc.CreateWithdrawal(CreateWithdrawalInput{
		ElectricianID: 2,
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(200)),
		Context:       context.Background(),
	})
	if !errors.Is(err, ErrGatewayRateLimited) {
		t.Fatalf("expected rate limited, got: %v", err)
	}

	var stored models.Withdrawal
	if err := db.First(&stored, "electrician_id = ?", 2).Error; err != nil {
		t.Fatalf("load withdrawal failed: %v", err)
	}
	if stored.Status != constants.WithdrawalStatusFailed {
		t.Fatalf("rate limited attempt should mark failed, got: %s", stored.Status)
	}
}

func TestCancelWithdrawalPendingCancelsLocally(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))
	createTestWithdrawal(t, db, "WD-PENDING", 2, constants.WithdrawalStatusPending, decimal.NewFromInt(100))

	var gatewayHits int64
	server := newTransferMockServer(t, &gatewayHits, "CANCELLING")
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	withdrawal, err := svc.CancelWithdrawal(context.Background(), "WD-PENDING", 2)
	if err != nil {
		t.Fatalf("cancel withdrawal failed: %v", err)
	}
	if withdrawal.Status != constants.WithdrawalStatusCancelled {
		t.Fatalf("expected cancelled, got: %s", withdrawal.Status)
	}
	if atomic.LoadInt64(&gatewayHits) != 0 {
		t.Fatalf("pending cancel should stay local, hits: %d", gatewayHits)
	}
}

func TestCancelWithdrawalProcessingCallsGateway(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))
	existing := createTestWithdrawal(t, db, "WD-PROC", 2, constants.WithdrawalStatusProcessing, decimal.NewFromInt(100))
	existing.TransferBillNo = "TB10086"
	if err := db.Save(existing).Error; err != nil {
		t.Fatalf("save withdrawal failed: %v", err)
	}

	var gatewayHits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&gatewayHits, 1)
		if !strings.HasSuffix(r.URL.Path, "/out-bill-no/WD-PROC/cancel") {
			t.Errorf("unexpected cancel path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"out_bill_no":      "WD-PROC",
			"transfer_bill_no": "TB10086",
			"state":            "CANCELLING",
		})
	}))
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	withdrawal, err := svc.CancelWithdrawal(context.Background(), "WD-PROC", 2)
	if err != nil {
		t.Fatalf("cancel withdrawal failed: %v", err)
	}
	if withdrawal.Status != constants.WithdrawalStatusCancelled {
		t.Fatalf("expected cancelled, got: %s", withdrawal.Status)
	}
	if atomic.LoadInt64(&gatewayHits) != 1 {
		t.Fatalf("expected one cancel call, hits: %d", gatewayHits)
	}
}

func TestCancelWithdrawalGatewayFailureStillCancelsLocally(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))
	existing := createTestWithdrawal(t, db, "WD-GWFAIL", 2, constants.WithdrawalStatusProcessing, decimal.NewFromInt(100))
	existing.TransferBillNo = "TB10086"
	if err := db.Save(existing).Error; err != nil {
		t.Fatalf("save withdrawal failed: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "SYSTEM_ERROR",
			"message": "system error",
		})
	}))
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	withdrawal, err := svc.CancelWithdrawal(context.Background(), "WD-GWFAIL", 2)
	if err != nil {
		t.Fatalf("cancel withdrawal failed: %v", err)
	}
	if withdrawal.Status != constants.WithdrawalStatusCancelled {
		t.Fatalf("expected local cancel despite gateway failure, got: %s", withdrawal.Status)
	}
}

func TestCancelWithdrawalTerminalIdempotent(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))
	createTestWithdrawal(t, db, "WD-DONE", 2, constants.WithdrawalStatusSuccess, decimal.NewFromInt(100))

	var gatewayHits int64
	server := newTransferMockServer(t, &gatewayHits, "CANCELLING")
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	withdrawal, err := svc.CancelWithdrawal(context.Background(), "WD-DONE", 2)
	if err != nil {
		t.Fatalf("cancel withdrawal failed: %v", err)
	}
	if withdrawal.Status != constants.WithdrawalStatusSuccess {
		t.Fatalf("terminal withdrawal should keep status, got: %s", withdrawal.Status)
	}
	if atomic.LoadInt64(&gatewayHits) != 0 {
		t.Fatalf("terminal cancel should not call gateway, hits: %d", gatewayHits)
	}
}

func TestApplyTransferStatusSuccessNotifiesOnce(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))
	withdrawal := createTestWithdrawal(t, db, "WD-1", 2, constants.WithdrawalStatusProcessing, decimal.NewFromInt(100))

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, ""))
	updated, err := svc.applyTransferStatus(withdrawal, constants.WithdrawalStatusSuccess, "TB10086", "", nil)
	if err != nil {
		t.Fatalf("apply transfer status failed: %v", err)
	}
	if updated.Status != constants.WithdrawalStatusSuccess {
		t.Fatalf("expected success, got: %s", updated.Status)
	}
	if updated.CompletedAt == nil {
		t.Fatal("completed_at should be set")
	}

	// 重复回调不再产生新通知
	if _, err := svc.applyTransferStatus(updated, constants.WithdrawalStatusSuccess, "TB10086", "", nil); err != nil {
		t.Fatalf("duplicate apply failed: %v", err)
	}

	var notifications int64
	if err := db.Model(&models.Notification{}).Where("user_id = ?", 2).Count(&notifications).Error; err != nil {
		t.Fatalf("count notifications failed: %v", err)
	}
	if notifications != 1 {
		t.Fatalf("expected one withdrawal notification, got: %d", notifications)
	}
}

func TestApplyTransferStatusKeepsCreationSnapshots(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))

	server := newTransferMockServer(t, nil, "WAIT_USER_CONFIRM")
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	withdrawal, err := svc.CreateWithdrawal(CreateWithdrawalInput{
		ElectricianID: 2,
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(200)),
		Context:       context.Background(),
	})
	if err != nil {
		t.Fatalf("create withdrawal failed: %v", err)
	}

	if _, err := svc.applyTransferStatus(withdrawal, constants.WithdrawalStatusSuccess, "TB20001", "", nil); err != nil {
		t.Fatalf("apply transfer status failed: %v", err)
	}

	var stored models.Withdrawal
	if err := db.First(&stored, "out_batch_no = ?", withdrawal.OutBatchNo).Error; err != nil {
		t.Fatalf("load withdrawal failed: %v", err)
	}
	if stored.Status != constants.WithdrawalStatusSuccess {
		t.Fatalf("unexpected status: %s", stored.Status)
	}
	// 创建时的账目快照不随状态流转改变
	if stored.SnapshotTotalIncome.String() != "500.00" {
		t.Fatalf("income snapshot changed: %s", stored.SnapshotTotalIncome.String())
	}
	if stored.SnapshotWithdrawn.String() != "0.00" {
		t.Fatalf("withdrawn snapshot changed: %s", stored.SnapshotWithdrawn.String())
	}
	if stored.SnapshotAvailable.String() != "500.00" {
		t.Fatalf("available snapshot changed: %s", stored.SnapshotAvailable.String())
	}
}

func TestQueryWithdrawalStatusGatewayErrorKeepsLocal(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))
	createTestWithdrawal(t, db, "WD-1", 2, constants.WithdrawalStatusProcessing, decimal.NewFromInt(100))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	result, err := svc.QueryWithdrawalStatus(context.Background(), "WD-1", 2)
	if err != nil {
		t.Fatalf("query withdrawal status failed: %v", err)
	}
	if result.GatewayError == "" {
		t.Fatal("gateway error should be surfaced as metadata")
	}
	if result.Withdrawal.Status != constants.WithdrawalStatusProcessing {
		t.Fatalf("local status should be untouched, got: %s", result.Withdrawal.Status)
	}
}

func TestQueryWithdrawalStatusSyncsSuccess(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))
	createTestWithdrawal(t, db, "WD-1", 2, constants.WithdrawalStatusProcessing, decimal.NewFromInt(100))

	server := newTransferMockServer(t, nil, "SUCCESS")
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	result, err := svc.QueryWithdrawalStatus(context.Background(), "WD-1", 2)
	if err != nil {
		t.Fatalf("query withdrawal status failed: %v", err)
	}
	if result.Withdrawal.Status != constants.WithdrawalStatusSuccess {
		t.Fatalf("gateway success should sync local status, got: %s", result.Withdrawal.Status)
	}

	var stored models.Withdrawal
	if err := db.First(&stored, "out_batch_no = ?", "WD-1").Error; err != nil {
		t.Fatalf("load withdrawal failed: %v", err)
	}
	if stored.Status != constants.WithdrawalStatusSuccess {
		t.Fatalf("synced status should persist, got: %s", stored.Status)
	}
	if stored.CompletedAt == nil {
		t.Fatal("completed_at should be set on success")
	}
}

func TestQueryWithdrawalStatusTerminalSkipsGateway(t *testing.T) {
	db := setupServiceDB(t)
	seedElectricianIncome(t, db, 2, decimal.NewFromInt(500))
	createTestWithdrawal(t, db, "WD-1", 2, constants.WithdrawalStatusFailed, decimal.NewFromInt(100))

	var gatewayHits int64
	server := newTransferMockServer(t, &gatewayHits, "SUCCESS")
	defer server.Close()

	svc := newTestWithdrawalService(t, db, newTestWechatConfig(t, server.URL))
	result, err := svc.QueryWithdrawalStatus(context.Background(), "WD-1", 2)
	if err != nil {
		t.Fatalf("query withdrawal status failed: %v", err)
	}
	if result.Withdrawal.Status != constants.WithdrawalStatusFailed {
		t.Fatalf("unexpected status: %s", result.Withdrawal.Status)
	}
	if atomic.LoadInt64(&gatewayHits) != 0 {
		t.Fatalf("terminal withdrawal should not hit gateway, hits: %d", gatewayHits)
	}
}
