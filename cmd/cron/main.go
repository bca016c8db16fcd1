package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/conf"
	"xinyuan_tech/checkout-service/internal/constants"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

// CronApp Cron 应用结构
type CronApp struct {
	checkoutUsecase *biz.CheckoutUsecase
}

func newCronApp(uc *biz.CheckoutUsecase) *CronApp {
	return &CronApp{checkoutUsecase: uc}
}

// newLogger 创建 logger
func newLogger() log.Logger {
	return log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "checkout-cron",
	)
}

// dailyCapture 执行一次到期请款，单条失败只记录日志
func (a *CronApp) dailyCapture(timeout time.Duration, logger *log.Helper) {
	logger.Info("[CRON] Starting daily capture...")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	results, err := a.checkoutUsecase.DailyCaptureAuthorization(ctx)
	captured, failed := 0, 0
	for _, result := range results {
		if result.Captured {
			captured++
			logger.Infof("[CRON] Captured: merchant_trade_no=%s, capture_id=%s", result.MerchantTradeNo, result.CaptureID)
		} else {
			failed++
			logger.Warnf("[CRON] Capture failed: merchant_trade_no=%s, error=%s", result.MerchantTradeNo, result.ErrorMessage)
		}
	}
	if err != nil {
		logger.Errorf("[CRON] Daily capture interrupted: %v", err)
	}
	logger.Infof("[CRON] Daily capture completed: total=%d, captured=%d, failed=%d", len(results), captured, failed)
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}
	bc.ApplyEnv()
	if err := bc.ValidateWorker(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}

	logger := newLogger()
	helper := log.NewHelper(logger)

	// 初始化应用
	app, cleanup, err := wireApp(&bc, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	spec, timeout := constants.DefaultDailyCaptureSpec, constants.DefaultSweepTimeout
	if bc.Cron != nil {
		if bc.Cron.DailyCapture != "" {
			spec = bc.Cron.DailyCapture
		}
		timeout = conf.MustDuration(bc.Cron.SweepTimeout, constants.DefaultSweepTimeout)
	}

	// 创建定时任务调度器（支持秒级调度），上一次未结束时跳过本次
	cronScheduler := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	_, err = cronScheduler.AddFunc(spec, func() { app.dailyCapture(timeout, helper) })
	if err != nil {
		panic(fmt.Sprintf("failed to add daily capture job %q: %v", spec, err))
	}

	// 启动定时任务
	cronScheduler.Start()
	helper.Infof("Cron jobs started: daily capture %q, timeout %s", spec, timeout)

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	helper.Info("Shutting down gracefully...")

	// 停止定时任务，等待正在执行的请款结束
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		helper.Info("Cron jobs stopped gracefully")
	case <-time.After(timeout):
		helper.Warn("Cron jobs forced to stop after timeout")
	}
}
