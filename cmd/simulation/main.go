package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	backtestapp "github.com/wyfcoding/stocksim/internal/backtest/application"
	backtestdomain "github.com/wyfcoding/stocksim/internal/backtest/domain"
	backtestmysql "github.com/wyfcoding/stocksim/internal/backtest/infrastructure/persistence/mysql"
	backtestifaces "github.com/wyfcoding/stocksim/internal/backtest/interfaces"
	sweepapp "github.com/wyfcoding/stocksim/internal/sweep/application"
	sweepdomain "github.com/wyfcoding/stocksim/internal/sweep/domain"
	sweepmysql "github.com/wyfcoding/stocksim/internal/sweep/infrastructure/persistence/mysql"
	sweepifaces "github.com/wyfcoding/stocksim/internal/sweep/interfaces"
	sweepconsumer "github.com/wyfcoding/stocksim/internal/sweep/interfaces/consumer"
	tradingapp "github.com/wyfcoding/stocksim/internal/trading/application"
	tradingdomain "github.com/wyfcoding/stocksim/internal/trading/domain"
	tradingifaces "github.com/wyfcoding/stocksim/internal/trading/interfaces"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/app"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/database"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"github.com/wyfcoding/pkg/metrics"
	"github.com/wyfcoding/pkg/middleware"
)

// BootstrapName 服务唯一标识
const BootstrapName = "simulation"

// Config 服务扩展配置
type Config struct {
	config.Config `mapstructure:",squash"`
	Simulation    struct {
		InitialCapital   float64 `mapstructure:"initial_capital" toml:"initial_capital"`
		CommissionRate   float64 `mapstructure:"commission_rate" toml:"commission_rate"`
		MinCommission    float64 `mapstructure:"min_commission" toml:"min_commission"`
		StampTaxRate     float64 `mapstructure:"stamp_tax_rate" toml:"stamp_tax_rate"`
		TransferFeeRate  float64 `mapstructure:"transfer_fee_rate" toml:"transfer_fee_rate"`
		SlippageRate     float64 `mapstructure:"slippage_rate" toml:"slippage_rate"`
		SweepConcurrency int     `mapstructure:"sweep_concurrency" toml:"sweep_concurrency"`
		ConsumerEnabled  bool    `mapstructure:"consumer_enabled" toml:"consumer_enabled"`
	} `mapstructure:"simulation" toml:"simulation"`
}

// AppContext 应用上下文
type AppContext struct {
	Config          *Config
	SessionService  *tradingapp.SessionService
	BacktestService *backtestapp.BacktestService
	SweepService    *sweepapp.SweepService
	TradingHandler  *tradingifaces.HTTPHandler
	BacktestHandler *backtestifaces.HTTPHandler
	SweepHandler    *sweepifaces.HTTPHandler
	Metrics         *metrics.Metrics
}

func main() {
	if err := app.NewBuilder[*Config, *AppContext](BootstrapName).
		WithConfig(&Config{}).
		WithService(initService).
		WithGin(registerGin).
		WithGinMiddleware(
			middleware.CORS(),
			middleware.TimeoutMiddleware(30*time.Second),
		).
		Build().
		Run(); err != nil {
		slog.Error("service bootstrap failed", "error", err)
	}
}

func registerGin(e *gin.Engine, ctx *AppContext) {
	if ctx.Config.Server.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	api := e.Group("/api/v1")
	{
		ctx.TradingHandler.RegisterRoutes(api)
		ctx.BacktestHandler.RegisterRoutes(api)
		ctx.SweepHandler.RegisterRoutes(api)
	}
}

func initService(cfg *Config, m *metrics.Metrics) (*AppContext, func(), error) {
	bootLog := slog.With("module", "bootstrap")
	logger := logging.Default()

	// 1. 数据库
	dbWrapper, err := database.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger, m)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init db: %w", err)
	}
	db := dbWrapper.RawDB()

	if err := db.AutoMigrate(&backtestdomain.BacktestReport{}, &sweepdomain.Preset{}, &outbox.Message{}); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	// 2. 消息队列 & Outbox
	producer := kafka.NewProducer(&cfg.MessageQueue.Kafka, logger, m)
	outboxMgr := outbox.NewManager(db, logger.Logger)
	outboxProc := outbox.NewProcessor(outboxMgr, func(ctx context.Context, topic, key string, payload []byte) error {
		return producer.PublishToTopic(ctx, topic, []byte(key), payload)
	}, 100, 5*time.Second)
	outboxProc.Start()

	// 3. 仓储
	reportRepo := backtestmysql.NewReportRepository(db)
	presetRepo := sweepmysql.NewPresetRepository(db)

	// 4. 服务
	publisher := outbox.NewPublisher(outboxMgr)
	simulator := backtestdomain.NewSimulator()

	sessionService := tradingapp.NewSessionService(feeSchedule(cfg), publisher, logger.Logger)
	backtestService := backtestapp.NewBacktestService(simulator, reportRepo, publisher, logger.Logger)

	sweepConcurrency := cfg.Simulation.SweepConcurrency
	if sweepConcurrency <= 0 {
		sweepConcurrency = 4
	}
	sweepService := sweepapp.NewSweepService(
		simulator,
		presetRepo,
		publisher,
		sweepdomain.DefaultScoreWeights(),
		sweepConcurrency,
		logger.Logger,
	)

	// 5. Handler
	tradingHandler := tradingifaces.NewHTTPHandler(sessionService)
	backtestHandler := backtestifaces.NewHTTPHandler(backtestService)
	sweepHandler := sweepifaces.NewHTTPHandler(sweepService)

	// 6. 扫描请求消费者
	var runConsumer *kafka.Consumer
	if cfg.Simulation.ConsumerEnabled {
		consumerCfg := cfg.MessageQueue.Kafka
		consumerCfg.Topic = sweepconsumer.TopicRunRequested
		if consumerCfg.GroupID == "" {
			consumerCfg.GroupID = "simulation-sweep-group"
		}
		handler := sweepconsumer.NewSweepHandler(sweepService, logger.Logger)
		runConsumer = kafka.NewConsumer(&consumerCfg, logger, m)
		runConsumer.Start(context.Background(), 1, handler.Handle)
	}

	cleanup := func() {
		bootLog.Info("shutting down...")
		if runConsumer != nil {
			_ = runConsumer.Close()
		}
		outboxProc.Stop()
		if producer != nil {
			producer.Close()
		}
		if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
			sqlDB.Close()
		}
	}

	return &AppContext{
		Config:          cfg,
		SessionService:  sessionService,
		BacktestService: backtestService,
		SweepService:    sweepService,
		TradingHandler:  tradingHandler,
		BacktestHandler: backtestHandler,
		SweepHandler:    sweepHandler,
		Metrics:         m,
	}, cleanup, nil
}

// feeSchedule 组装费用参数，未配置的项用默认值
func feeSchedule(cfg *Config) tradingdomain.FeeSchedule {
	fees := tradingdomain.DefaultFeeSchedule()
	sim := cfg.Simulation
	if sim.InitialCapital > 0 {
		fees.InitialCapital = decimal.NewFromFloat(sim.InitialCapital)
	}
	if sim.CommissionRate > 0 {
		fees.CommissionRate = decimal.NewFromFloat(sim.CommissionRate)
	}
	if sim.MinCommission > 0 {
		fees.MinCommission = decimal.NewFromFloat(sim.MinCommission)
	}
	if sim.StampTaxRate > 0 {
		fees.StampTaxRate = decimal.NewFromFloat(sim.StampTaxRate)
	}
	if sim.TransferFeeRate > 0 {
		fees.TransferFeeRate = decimal.NewFromFloat(sim.TransferFeeRate)
	}
	if sim.SlippageRate > 0 {
		fees.SlippageRate = decimal.NewFromFloat(sim.SlippageRate)
	}
	return fees
}
