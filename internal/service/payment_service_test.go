package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dianxiu-server/internal/constants"
	"github.com/dianxiu-server/internal/models"
	"github.com/dianxiu-server/internal/payment/wechatpay"
	"github.com/dianxiu-server/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newTestPaymentService(t *testing.T, db *gorm.DB, cfg *wechatpay.Config) *PaymentService {
	t.Helper()
	queueClient := newDisabledQueueClient(t)
	notificationSvc := NewNotificationService(repository.NewNotificationRepository(db), queueClient)
	return NewPaymentService(
		repository.NewOrderRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewUserRepository(db),
		notificationSvc,
		queueClient,
		cfg,
	)
}

func createTestServiceType(t *testing.T, db *gorm.DB, prepayAmount decimal.Decimal) {
	t.Helper()
	serviceType := models.ServiceType{
		ID:           1,
		Name:         "电路维修",
		PrepayAmount: models.NewMoneyFromDecimal(prepayAmount),
		Enabled:      true,
	}
	if err := db.Create(&serviceType).Error; err != nil {
		t.Fatalf("create service type failed: %v", err)
	}
}

func createTestPayment(t *testing.T, db *gorm.DB, payment *models.Payment) *models.Payment {
	t.Helper()
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	return payment
}

func TestCreatePaymentSuccess(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	createTestServiceType(t, db, decimal.NewFromInt(50))
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPendingPayment, decimal.Zero)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v3/pay/transactions/jsapi") {
			t.Errorf("unexpected request path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"prepay_id": "wx20260830prepay"})
	}))
	defer server.Close()

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, server.URL))
	result, err := svc.CreatePayment(CreatePaymentInput{
		OrderID: order.ID,
		UserID:  1,
		Type:    constants.PaymentTypePrepay,
		Context: context.Background(),
	})
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if result.Reused {
		t.Fatal("fresh payment should not be marked reused")
	}
	if result.Payment.Amount.String() != "50.00" {
		t.Fatalf("prepay amount should come from service type, got: %s", result.Payment.Amount.String())
	}
	if result.Payment.PrepayID != "wx20260830prepay" {
		t.Fatalf("unexpected prepay id: %s", result.Payment.PrepayID)
	}
	if result.PayParams == nil || result.PayParams.Package != "prepay_id=wx20260830prepay" {
		t.Fatalf("unexpected pay params: %+v", result.PayParams)
	}

	var stored models.Payment
	if err := db.First(&stored, "out_trade_no = ?", result.Payment.OutTradeNo).Error; err != nil {
		t.Fatalf("load stored payment failed: %v", err)
	}
	if stored.Status != constants.PaymentStatusPending {
		t.Fatalf("unexpected payment status: %s", stored.Status)
	}
}

func TestCreatePaymentReusesPendingWithoutGatewayCall(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	createTestServiceType(t, db, decimal.NewFromInt(50))
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPendingPayment, decimal.Zero)

	existing := createTestPayment(t, db, &models.Payment{
		OutTradeNo:   "PAY20260830000001123456",
		OrderID:      order.ID,
		UserID:       1,
		Type:         constants.PaymentTypePrepay,
		Amount:       models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		Status:       constants.PaymentStatusPending,
		RefundStatus: constants.RefundStatusNone,
		PrepayID:     "wx_existing_prepay",
	})

	var gatewayHits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&gatewayHits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, server.URL))
	result, err := svc.CreatePayment(CreatePaymentInput{
		OrderID: order.ID,
		UserID:  1,
		Type:    constants.PaymentTypePrepay,
		Context: context.Background(),
	})
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if !result.Reused {
		t.Fatal("pending payment should be reused")
	}
	if result.Payment.OutTradeNo != existing.OutTradeNo {
		t.Fatalf("unexpected out_trade_no: %s", result.Payment.OutTradeNo)
	}
	if atomic.LoadInt64(&gatewayHits) != 0 {
		t.Fatalf("reuse should not call gateway, hits: %d", gatewayHits)
	}
}

func TestCreatePaymentRepeatedRequestsKeepSinglePending(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	createTestServiceType(t, db, decimal.NewFromInt(50))
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPendingPayment, decimal.Zero)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"prepay_id": "wx_single_pending"})
	}))
	defer server.Close()

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, server.URL))
	first, err := svc.CreatePayment(CreatePaymentInput{
		OrderID: order.ID,
		UserID:  1,
		Type:    constants.PaymentTypePrepay,
		Context: context.Background(),
	})
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second, err := svc.CreatePayment(CreatePaymentInput{
		OrderID: order.ID,
		UserID:  1,
		Type:    constants.PaymentTypePrepay,
		Context: context.Background(),
	})
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if !second.Reused {
		t.Fatal("second request should reuse the pending payment")
	}
	if second.Payment.OutTradeNo != first.Payment.OutTradeNo {
		t.Fatalf("out_trade_no diverged: %s vs %s", first.Payment.OutTradeNo, second.Payment.OutTradeNo)
	}

	var pending int64
	if err := db.Model(&models.Payment{}).
		Where("order_id = ? AND type = ? AND status = ?", order.ID, constants.PaymentTypePrepay, constants.PaymentStatusPending).
		Count(&pending).Error; err != nil {
		t.Fatalf("count pending payments failed: %v", err)
	}
	if pending != 1 {
		t.Fatalf("expected exactly one pending payment, got: %d", pending)
	}
}

func TestCreatePaymentGatewayFailureMarksFailed(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	createTestServiceType(t, db, decimal.NewFromInt(50))
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPendingPayment, decimal.Zero)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "PARAM_ERROR", "message": "参数错误"})
	}))
	defer server.Close()

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, server.URL))
	_, err := svc.CreatePayment(CreatePaymentInput{
		OrderID: order.ID,
		UserID:  1,
		Type:    constants.PaymentTypePrepay,
		Context: context.Background(),
	})
	if !errors.Is(err, ErrPaymentProviderFailed) {
		t.Fatalf("expected provider failure, got: %v", err)
	}

	var stored models.Payment
	if err := db.First(&stored, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load stored payment failed: %v", err)
	}
	if stored.Status != constants.PaymentStatusFailed {
		t.Fatalf("gateway failure should mark payment failed, got: %s", stored.Status)
	}
	if stored.FailReason == "" {
		t.Fatal("fail reason should be recorded")
	}
}

func TestCreatePaymentRejectsWrongOrderStatus(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	createTestServiceType(t, db, decimal.NewFromInt(50))
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPending, decimal.Zero)

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, ""))
	_, err := svc.CreatePayment(CreatePaymentInput{
		OrderID: order.ID,
		UserID:  1,
		Type:    constants.PaymentTypePrepay,
		Context: context.Background(),
	})
	if !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("expected status invalid, got: %v", err)
	}
}

func TestCreatePaymentDeniesOtherUser(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	createTestUser(t, db, 9, constants.UserRoleCustomer)
	createTestServiceType(t, db, decimal.NewFromInt(50))
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPendingPayment, decimal.Zero)

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, ""))
	_, err := svc.CreatePayment(CreatePaymentInput{
		OrderID: order.ID,
		UserID:  9,
		Type:    constants.PaymentTypePrepay,
		Context: context.Background(),
	})
	if !errors.Is(err, ErrOrderAccessDenied) {
		t.Fatalf("expected access denied, got: %v", err)
	}
}

func TestApplyPaymentUpdatePrepaySuccessAdvancesOrder(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPendingPayment, decimal.Zero)
	payment := createTestPayment(t, db, &models.Payment{
		OutTradeNo:   "PAY20260830000001123456",
		OrderID:      order.ID,
		UserID:       1,
		Type:         constants.PaymentTypePrepay,
		Amount:       models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		Status:       constants.PaymentStatusPending,
		RefundStatus: constants.RefundStatusNone,
	})

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, ""))
	paidAt := time.Now().Add(-time.Minute)
	updated, orderPaid, err := svc.applyPaymentUpdate(payment, constants.PaymentStatusSuccess, "4200001234", &paidAt)
	if err != nil {
		t.Fatalf("apply payment update failed: %v", err)
	}
	if !orderPaid {
		t.Fatal("first success callback should advance order")
	}
	if updated.Status != constants.PaymentStatusSuccess || updated.TransactionID != "4200001234" {
		t.Fatalf("unexpected payment after update: %+v", updated)
	}
	if updated.PaidAt == nil {
		t.Fatal("paid_at should be set")
	}

	var storedOrder models.Order
	if err := db.First(&storedOrder, order.ID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if storedOrder.Status != constants.OrderStatusPending {
		t.Fatalf("prepay success should move order to pending, got: %s", storedOrder.Status)
	}

	logs, err := repository.NewOrderRepository(db).CountStatusLogs(order.ID, constants.OrderStatusPending)
	if err != nil {
		t.Fatalf("count status logs failed: %v", err)
	}
	if logs != 1 {
		t.Fatalf("expected one status log, got: %d", logs)
	}

	var notifications int64
	if err := db.Model(&models.Notification{}).Where("user_id = ?", 1).Count(&notifications).Error; err != nil {
		t.Fatalf("count notifications failed: %v", err)
	}
	if notifications != 1 {
		t.Fatalf("expected one payment notification, got: %d", notifications)
	}
}

func TestApplyPaymentUpdateDuplicateCallbackIdempotent(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPendingPayment, decimal.Zero)
	payment := createTestPayment(t, db, &models.Payment{
		OutTradeNo:   "PAY20260830000001123456",
		OrderID:      order.ID,
		UserID:       1,
		Type:         constants.PaymentTypePrepay,
		Amount:       models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		Status:       constants.PaymentStatusPending,
		RefundStatus: constants.RefundStatusNone,
	})

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, ""))
	if _, _, err := svc.applyPaymentUpdate(payment, constants.PaymentStatusSuccess, "4200001234", nil); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	_, orderPaid, err := svc.applyPaymentUpdate(payment, constants.PaymentStatusSuccess, "4200001234", nil)
	if err != nil {
		t.Fatalf("duplicate apply failed: %v", err)
	}
	if orderPaid {
		t.Fatal("duplicate callback should not advance order again")
	}

	logs, err := repository.NewOrderRepository(db).CountStatusLogs(order.ID, constants.OrderStatusPending)
	if err != nil {
		t.Fatalf("count status logs failed: %v", err)
	}
	if logs != 1 {
		t.Fatalf("duplicate callback should keep one status log, got: %d", logs)
	}

	var notifications int64
	if err := db.Model(&models.Notification{}).Count(&notifications).Error; err != nil {
		t.Fatalf("count notifications failed: %v", err)
	}
	if notifications != 1 {
		t.Fatalf("duplicate callback should keep one notification, got: %d", notifications)
	}
}

func TestApplyPaymentUpdateRepairSuccessStartsWork(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPendingRepairPayment, decimal.NewFromInt(380))
	payment := createTestPayment(t, db, &models.Payment{
		OutTradeNo:   "PAY20260830000002123456",
		OrderID:      order.ID,
		UserID:       1,
		Type:         constants.PaymentTypeRepair,
		Amount:       models.NewMoneyFromDecimal(decimal.NewFromInt(380)),
		Status:       constants.PaymentStatusPending,
		RefundStatus: constants.RefundStatusNone,
	})

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, ""))
	_, orderPaid, err := svc.applyPaymentUpdate(payment, constants.PaymentStatusSuccess, "4200005678", nil)
	if err != nil {
		t.Fatalf("apply payment update failed: %v", err)
	}
	if !orderPaid {
		t.Fatal("repair payment success should advance order")
	}

	var storedOrder models.Order
	if err := db.First(&storedOrder, order.ID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if storedOrder.Status != constants.OrderStatusInProgress {
		t.Fatalf("repair success should move order to in_progress, got: %s", storedOrder.Status)
	}
}

func TestApplyPaymentUpdateExpired(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPendingPayment, decimal.Zero)
	payment := createTestPayment(t, db, &models.Payment{
		OutTradeNo:   "PAY20260830000003123456",
		OrderID:      order.ID,
		UserID:       1,
		Type:         constants.PaymentTypePrepay,
		Amount:       models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		Status:       constants.PaymentStatusPending,
		RefundStatus: constants.RefundStatusNone,
	})

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, ""))
	updated, orderPaid, err := svc.applyPaymentUpdate(payment, constants.PaymentStatusExpired, "", nil)
	if err != nil {
		t.Fatalf("apply payment update failed: %v", err)
	}
	if orderPaid {
		t.Fatal("expired payment should not advance order")
	}
	if updated.Status != constants.PaymentStatusExpired {
		t.Fatalf("unexpected status: %s", updated.Status)
	}

	var storedOrder models.Order
	if err := db.First(&storedOrder, order.ID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if storedOrder.Status != constants.OrderStatusPendingPayment {
		t.Fatalf("order status should be untouched, got: %s", storedOrder.Status)
	}
}

func TestRequestRefundRequiresCancelledOrder(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPending, decimal.Zero)
	createTestPayment(t, db, &models.Payment{
		OutTradeNo:   "PAY20260830000004123456",
		OrderID:      order.ID,
		UserID:       1,
		Type:         constants.PaymentTypePrepay,
		Amount:       models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		Status:       constants.PaymentStatusSuccess,
		RefundStatus: constants.RefundStatusNone,
	})

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, ""))
	_, err := svc.RequestRefund(RefundRequestInput{
		OutTradeNo: "PAY20260830000004123456",
		UserID:     1,
		Context:    context.Background(),
	})
	if !errors.Is(err, ErrPaymentNotRefundable) {
		t.Fatalf("expected not refundable, got: %v", err)
	}
}

func TestRequestRefundGatewayFailureRollsBackMark(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusCancelled, decimal.Zero)
	createTestPayment(t, db, &models.Payment{
		OutTradeNo:   "PAY20260830000005123456",
		OrderID:      order.ID,
		UserID:       1,
		Type:         constants.PaymentTypePrepay,
		Amount:       models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		Status:       constants.PaymentStatusSuccess,
		RefundStatus: constants.RefundStatusNone,
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "NOT_ENOUGH", "message": "余额不足"})
	}))
	defer server.Close()

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, server.URL))
	_, err := svc.RequestRefund(RefundRequestInput{
		OutTradeNo: "PAY20260830000005123456",
		UserID:     1,
		Reason:     "用户取消订单",
		Context:    context.Background(),
	})
	if !errors.Is(err, ErrPaymentProviderFailed) {
		t.Fatalf("expected provider failure, got: %v", err)
	}

	var stored models.Payment
	if err := db.First(&stored, "out_trade_no = ?", "PAY20260830000005123456").Error; err != nil {
		t.Fatalf("load payment failed: %v", err)
	}
	if stored.RefundStatus != constants.RefundStatusNone {
		t.Fatalf("refund mark should roll back, got: %s", stored.RefundStatus)
	}
	if stored.OutRefundNo != "" {
		t.Fatalf("out_refund_no should roll back, got: %s", stored.OutRefundNo)
	}
}

func TestMarkPaymentFailedKeepsSuccessTerminal(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPending, decimal.Zero)
	paidAt := time.Now()
	createTestPayment(t, db, &models.Payment{
		OutTradeNo:    "PAY20260830000009123456",
		TransactionID: "4200009999",
		OrderID:       order.ID,
		UserID:        1,
		Type:          constants.PaymentTypePrepay,
		Amount:        models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		Status:        constants.PaymentStatusSuccess,
		RefundStatus:  constants.RefundStatusNone,
		PaidAt:        &paidAt,
	})

	// 模拟下单路径网关超时期间成功回调已先落库
	stale := &models.Payment{
		OutTradeNo: "PAY20260830000009123456",
		Status:     constants.PaymentStatusPending,
	}
	svc := newTestPaymentService(t, db, newTestWechatConfig(t, ""))
	svc.markPaymentFailed(stale, errors.New("context deadline exceeded"))

	var stored models.Payment
	if err := db.First(&stored, "out_trade_no = ?", "PAY20260830000009123456").Error; err != nil {
		t.Fatalf("load payment failed: %v", err)
	}
	if stored.Status != constants.PaymentStatusSuccess {
		t.Fatalf("success terminal should not be overwritten, got: %s", stored.Status)
	}
	if stored.TransactionID != "4200009999" {
		t.Fatalf("transaction id should survive, got: %s", stored.TransactionID)
	}
	if stored.PaidAt == nil {
		t.Fatal("paid_at should survive")
	}
}

func TestQueryPaymentStatusTerminalSkipsGateway(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPending, decimal.Zero)
	createTestPayment(t, db, &models.Payment{
		OutTradeNo:   "PAY20260830000010123456",
		OrderID:      order.ID,
		UserID:       1,
		Type:         constants.PaymentTypePrepay,
		Amount:       models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		Status:       constants.PaymentStatusSuccess,
		RefundStatus: constants.RefundStatusNone,
	})

	var gatewayHits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&gatewayHits, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"out_trade_no": "PAY20260830000010123456",
			"trade_state":  "CLOSED",
		})
	}))
	defer server.Close()

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, server.URL))
	result, err := svc.QueryPaymentStatus(context.Background(), "PAY20260830000010123456", 1)
	if err != nil {
		t.Fatalf("query payment status failed: %v", err)
	}
	if result.Payment.Status != constants.PaymentStatusSuccess {
		t.Fatalf("terminal payment should return as-is, got: %s", result.Payment.Status)
	}
	if atomic.LoadInt64(&gatewayHits) != 0 {
		t.Fatalf("terminal payment should not hit gateway, hits: %d", gatewayHits)
	}
}

func TestQueryPaymentStatusGatewayErrorKeepsLocal(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPendingPayment, decimal.Zero)
	createTestPayment(t, db, &models.Payment{
		OutTradeNo:   "PAY20260830000006123456",
		OrderID:      order.ID,
		UserID:       1,
		Type:         constants.PaymentTypePrepay,
		Amount:       models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		Status:       constants.PaymentStatusPending,
		RefundStatus: constants.RefundStatusNone,
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, server.URL))
	result, err := svc.QueryPaymentStatus(context.Background(), "PAY20260830000006123456", 1)
	if err != nil {
		t.Fatalf("query payment status failed: %v", err)
	}
	if result.GatewayError == "" {
		t.Fatal("gateway error should be surfaced as metadata")
	}
	if result.Payment.Status != constants.PaymentStatusPending {
		t.Fatalf("local status should be untouched, got: %s", result.Payment.Status)
	}
}

func TestQueryPaymentStatusSyncsClosedToExpired(t *testing.T) {
	db := setupServiceDB(t)
	createTestUser(t, db, 1, constants.UserRoleCustomer)
	createTestUser(t, db, 2, constants.UserRoleElectrician)
	order := createTestOrder(t, db, "ORD-1", 1, 2, constants.OrderStatusPendingPayment, decimal.Zero)
	createTestPayment(t, db, &models.Payment{
		OutTradeNo:   "PAY20260830000007123456",
		OrderID:      order.ID,
		UserID:       1,
		Type:         constants.PaymentTypePrepay,
		Amount:       models.NewMoneyFromDecimal(decimal.NewFromInt(50)),
		Status:       constants.PaymentStatusPending,
		RefundStatus: constants.RefundStatusNone,
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"out_trade_no": "PAY20260830000007123456",
			"trade_state":  "CLOSED",
		})
	}))
	defer server.Close()

	svc := newTestPaymentService(t, db, newTestWechatConfig(t, server.URL))
	result, err := svc.QueryPaymentStatus(context.Background(), "PAY20260830000007123456", 1)
	if err != nil {
		t.Fatalf("query payment status failed: %v", err)
	}
	if result.Payment.Status != constants.PaymentStatusExpired {
		t.Fatalf("closed order should sync to expired, got: %s", result.Payment.Status)
	}

	var stored models.Payment
	if err := db.First(&stored, "out_trade_no = ?", "PAY20260830000007123456").Error; err != nil {
		t.Fatalf("load payment failed: %v", err)
	}
	if stored.Status != constants.PaymentStatusExpired {
		t.Fatalf("expired status should persist, got: %s", stored.Status)
	}
}

func TestGenerateOutTradeNoFormat(t *testing.T) {
	no := generateOutTradeNo()
	if !strings.HasPrefix(no, "PAY") {
		t.Fatalf("unexpected prefix: %s", no)
	}
	if len(no) != len("PAY")+14+6 {
		t.Fatalf("unexpected length: %d (%s)", len(no), no)
	}
	if no == generateOutTradeNo() && no == generateOutTradeNo() {
		t.Fatal("consecutive numbers should differ")
	}
}

func TestGenerateOutBatchNoEmbedsElectricianID(t *testing.T) {
	no := generateOutBatchNo(42)
	if !strings.HasPrefix(no, "WD") {
		t.Fatalf("unexpected prefix: %s", no)
	}
	if len(no) != len("WD")+14+len("42")+6 {
		t.Fatalf("unexpected length: %d (%s)", len(no), no)
	}
	if no[16:18] != "42" {
		t.Fatalf("electrician id should follow the timestamp, got: %s", no)
	}
}
