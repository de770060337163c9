package main

import (
	"time"

	"github.com/dianxiu-server/internal/config"
	"github.com/dianxiu-server/internal/constants"
	"github.com/dianxiu-server/internal/logger"
	"github.com/dianxiu-server/internal/models"
	"github.com/dianxiu-server/internal/service"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("数据库连接失败: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("数据库迁移失败: %v", err)
	}

	// 服务类目（预付金额为可信来源，不接受端上传值）
	serviceTypes := []models.ServiceType{
		{Name: "电路故障排查", PrepayAmount: money("30.00"), Enabled: true},
		{Name: "开关插座维修", PrepayAmount: money("20.00"), Enabled: true},
		{Name: "灯具安装维修", PrepayAmount: money("25.00"), Enabled: true},
		{Name: "配电箱检修", PrepayAmount: money("50.00"), Enabled: true},
	}
	for i := range serviceTypes {
		st := &serviceTypes[i]
		var existing models.ServiceType
		err := models.DB.Where("name = ?", st.Name).First(&existing).Error
		if err == nil {
			continue
		}
		if err := models.DB.Create(st).Error; err != nil {
			stdLog.Fatalf("写入服务类目失败: %v", err)
		}
	}
	stdLog.Printf("服务类目就绪: %d 项", len(serviceTypes))

	// 演示账号：一个客户、一个已认证电工
	users := []models.User{
		{Nickname: "演示客户", Phone: "13800000001", OpenID: "demo-customer-openid", Role: constants.UserRoleCustomer, Status: constants.UserStatusActive},
		{Nickname: "演示电工", Phone: "13800000002", OpenID: "demo-electrician-openid", Role: constants.UserRoleElectrician, Status: constants.UserStatusActive},
	}
	for i := range users {
		user := &users[i]
		var existing models.User
		err := models.DB.Where("open_id = ?", user.OpenID).First(&existing).Error
		if err == nil {
			users[i] = existing
			continue
		}
		if err := models.DB.Create(user).Error; err != nil {
			stdLog.Fatalf("写入演示用户失败: %v", err)
		}
	}

	electrician := users[1]
	var cert models.Certification
	if err := models.DB.Where("electrician_id = ?", electrician.ID).First(&cert).Error; err != nil {
		now := time.Now()
		cert = models.Certification{
			ElectricianID: electrician.ID,
			RealName:      "李师傅",
			IDNumber:      "110101199001011234",
			Status:        constants.CertificationStatusApproved,
			ReviewedAt:    &now,
		}
		if err := models.DB.Create(&cert).Error; err != nil {
			stdLog.Fatalf("写入电工认证失败: %v", err)
		}
	}

	stdLog.Printf("演示数据就绪: 客户 #%d, 电工 #%d", users[0].ID, electrician.ID)

	// 演示令牌：放入 Authorization 头即可调用鉴权接口
	for i := range users {
		token, err := service.IssueUserToken(cfg.JWT, &users[i])
		if err != nil {
			stdLog.Printf("签发演示令牌失败(%s): %v", users[i].Nickname, err)
			continue
		}
		stdLog.Printf("演示令牌 %s: Bearer %s", users[i].Nickname, token)
	}
}

func money(raw string) models.Money {
	parsed, err := decimal.NewFromString(raw)
	if err != nil {
		panic(err)
	}
	return models.NewMoneyFromDecimal(parsed)
}
