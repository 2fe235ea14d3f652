package main

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/config"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/db"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/logger"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/middleware"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/server"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/common/tracing"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/identity"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/listing"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/notify"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/payment"
	"github.com/AutoBridgeHub/AutoBridgeHub/internal/request"
)

var (
	configPath  = flag.String("config", "configs/marketplace-service.json", "配置文件路径")
	consulKVKey = flag.String("consul-kv", "", "从 Consul KV 读取配置的 key（设置后优先于 -config）")
	consulHost  = flag.String("consul-host", "localhost", "Consul 地址（配合 -consul-kv）")
	consulPort  = flag.Int("consul-port", 8500, "Consul 端口（配合 -consul-kv）")
)

func main() {
	flag.Parse()

	// 加载配置：Consul KV 优先，其次本地文件
	var (
		cfg *config.Config
		err error
	)
	if *consulKVKey != "" {
		cfg, err = config.LoadConfigFromConsulKV(*consulHost, *consulPort, *consulKVKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewDriverLogger(cfg.Log.Driver, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
	gormDB, err := db.NewMySQL(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.MaxIdle,
		cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to init mysql: %v", err)
	}
	if err := gormDB.AutoMigrate(
		&identity.User{},
		&listing.Vehicle{},
		&listing.VehicleImage{},
		&request.VehicleRequest{},
		&payment.Payment{},
		&notify.Notification{},
		&notify.AuditLog{},
	); err != nil {
		log.Fatalf("failed to migrate mysql schema: %v", err)
	}

	// 组装依赖
	notifyRepo := notify.NewRepo(gormDB)
	dispatcher := notify.NewDispatcher(notifyRepo, log)

	identityRepo := identity.NewRepo(gormDB)
	listingRepo := listing.NewRepo(gormDB)
	requestRepo := request.NewRepo(gormDB)
	paymentRepo := payment.NewRepo(gormDB)

	listingSvc := listing.NewService(listingRepo, dispatcher)
	requestSvc := request.NewService(requestRepo, listingRepo, dispatcher, cfg.Payment.DefaultDeposit)
	provider := payment.NewHTTPProvider(cfg.Payment)
	paymentSvc := payment.NewService(paymentRepo, requestRepo, listingRepo, provider, dispatcher, log, cfg.Payment.Currency)

	// 注册路由
	mux := http.NewServeMux()
	identity.NewHandler(identityRepo, cfg.Auth).Register(mux)
	listing.NewHandler(listingSvc).Register(mux)
	request.NewHandler(requestSvc).Register(mux)
	payment.NewHandler(paymentSvc, cfg.Payment.WebhookSecret, log).Register(mux)
	notify.NewHandler(notifyRepo).Register(mux)

	// 中间件链：恢复 → 追踪 → 访问日志 → 限流 → 鉴权
	limiter := middleware.NewTokenBucket(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	handler := server.Chain(
		server.Recovery(log),
		server.Tracing(cfg.Server.Name),
		server.AccessLog(log),
		server.RateLimit(limiter),
		server.JWTAuth(cfg.Auth, log),
	)(mux)

	if err := server.RunHTTPServer(cfg, log, handler); err != nil {
		log.Fatalf("marketplace-service exited with error: %v", err)
	}
}
