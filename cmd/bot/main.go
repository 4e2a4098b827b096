package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/internal/engine"
	"github.com/MuditaSai/weather/internal/kalshi"
	"github.com/MuditaSai/weather/internal/ledger"
	"github.com/MuditaSai/weather/internal/nws"
	"github.com/MuditaSai/weather/internal/server"
	"github.com/MuditaSai/weather/internal/tracker"
	"github.com/MuditaSai/weather/pkg/cache"
	"github.com/MuditaSai/weather/pkg/config"
	"github.com/MuditaSai/weather/pkg/logger"
	"github.com/MuditaSai/weather/pkg/persistence"
	"github.com/MuditaSai/weather/pkg/shutdown"
	"github.com/MuditaSai/weather/pkg/syncgroup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	once := flag.Bool("once", false, "只跑一轮后退出")
	monitor := flag.Bool("monitor", false, "监控模式：只对账/处置/结算，不开新仓")
	today := flag.Bool("today", false, "目标日期改为今天")
	tomo := flag.Bool("tomo", false, "目标日期改为明天")
	flag.Parse()

	// .env 只是本地开发便利，不存在时静默跳过
	_ = godotenv.Load()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *today {
		cfg.Strategy.DaysAhead = 0
	}
	if *tomo {
		cfg.Strategy.DaysAhead = 1
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	signer, err := kalshi.NewSigner(cfg.Kalshi.APIKey, cfg.Kalshi.PrivateKeyPath)
	if err != nil {
		logger.Error("加载交易所私钥失败: " + err.Error())
		os.Exit(1)
	}
	venue := kalshi.NewClient(cfg.Kalshi.BaseURL, signer)

	forecasts := nws.NewCachedSource(
		nws.NewClient(""),
		cache.NewForecastCache[*domain.Forecast](30*time.Minute),
	)

	legs, err := tracker.Open(cfg.Storage.PositionsDir)
	if err != nil {
		logger.Error("打开持仓库失败: " + err.Error())
		os.Exit(1)
	}
	book, err := ledger.Open(cfg.Storage.LedgerPath)
	if err != nil {
		logger.Error("打开台账失败: " + err.Error())
		os.Exit(1)
	}

	eng := engine.New(cfg, venue, forecasts, legs, book)
	eng.ScanEnabled = !*monitor

	if *once {
		eng.RunOnce(context.Background())
		_ = legs.Close()
		_ = book.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	mgr := shutdown.NewManager()
	mgr.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
		defer wg.Done()
		_ = legs.Close()
		_ = book.Close()
	})

	sg := syncgroup.NewSyncGroup()

	if cfg.Server.Listen != "" {
		persist := persistence.NewJSONFileService(cfg.Storage.ExportDir)
		srv := server.New(eng, legs, book, persist)
		sg.Add(func() {
			if err := srv.Run(ctx, cfg.Server.Listen); err != nil {
				logger.Error("控制面服务退出: " + err.Error())
			}
		})
	}

	// SIGINT/SIGTERM 触发优雅退出；SIGHUP 只是催促引擎立即跑一轮
	sg.Add(func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigChan:
				if sig == syscall.SIGHUP {
					logger.Info("收到 SIGHUP，立即执行一轮")
					eng.Nudge()
					continue
				}
				logger.Info("收到退出信号")
				cancel()
				return
			}
		}
	})
	sg.Run()

	_ = eng.Run(ctx)
	cancel()
	sg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	mgr.Shutdown(shutdownCtx)
}
