package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kai657/po-adjustment/internal/config"
	"github.com/kai657/po-adjustment/internal/optimizer"
	"github.com/kai657/po-adjustment/internal/server"
	"github.com/kai657/po-adjustment/internal/store"
	"github.com/kai657/po-adjustment/internal/util"
	"github.com/kai657/po-adjustment/internal/wizard"
)

var (
	port      = flag.Int("port", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	devMode   = flag.Bool("dev", false, "开发模式")
	dataDir   = flag.String("dataDir", "", "数据目录 (覆盖配置文件)")
	remoteURL = flag.String("remote", "", "远端优化服务地址 (覆盖配置文件)")
	debug     = flag.Bool("debug", false, "输出调试日志")
	initCfg   = flag.Bool("initConfig", false, "将当前生效的配置写入 config.toml 后退出")

	// 终端模式
	headless = flag.Bool("headless", false, "终端模式：不启动浏览器，直接上传并优化")
	schedule = flag.String("schedule", "", "排程目标文件 (终端模式)")
	poFile   = flag.String("po", "", "PO清单文件 (终端模式)")
	export   = flag.String("export", "", "差异表本地导出路径 .xlsx (终端模式，可选)")

	priorityWeeks  = flag.Int("priorityWeeks", 0, "优先周数")
	priorityWeight = flag.Float64("priorityWeight", 0, "优先权重")
	dateWeight     = flag.Float64("dateWeight", 0, "日期权重")
	maxWorkers     = flag.Int("maxWorkers", 0, "并行进程数")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	fmt.Println("==========================================")
	fmt.Println("  PO 调整优化向导")
	fmt.Println("==========================================")

	// 加载配置
	cfg, info, err := config.LoadConfigWithInfo()
	if err != nil {
		logger.Warn("加载配置失败，使用默认配置", "error", err)
		cfg = config.DefaultConfig()
		info.PortSpecified = false
	}
	applyFlags(cfg, info)

	if *initCfg {
		if err := config.SaveConfig(cfg, info.Path); err != nil {
			logger.Error("写入配置失败", "path", info.Path, "error", err)
			os.Exit(1)
		}
		fmt.Printf("配置已写入: %s\n", info.Path)
		return
	}

	// 确保数据目录存在
	if dir, err := config.EnsureDataDir(cfg); err != nil {
		logger.Warn("创建数据目录失败", "dir", config.ResolveDataDir(cfg), "error", err)
	} else {
		fmt.Printf("数据目录: %s\n", dir)
	}

	// 优化记录；打开失败时不记录
	var journal *store.Store
	if st, err := store.New(config.GetDataPath(cfg, "", "powizard.db")); err != nil {
		logger.Warn("无法打开优化记录数据库", "error", err)
	} else {
		journal = st
		defer journal.Close()
	}

	client := optimizer.New(cfg.Remote.BaseURL, cfg.RemoteTimeout(), logger)
	fmt.Printf("远端优化服务: %s\n", client.BaseURL())

	opts := cfg.SessionOptions()
	opts.Logger = logger
	if journal != nil {
		opts.Journal = journal
	}

	if *headless {
		code := runHeadless(client, opts)
		if journal != nil {
			_ = journal.Close()
		}
		os.Exit(code)
	}

	session := wizard.NewSession(client, opts)
	defer session.Close()

	var runs server.RunLister
	if journal != nil {
		runs = journal
	}
	srv, err := server.New(session, client, runs, server.Options{
		DevMode:        cfg.Server.DevMode,
		RemoteURL:      client.BaseURL(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		ExportDir:      config.GetDataPath(cfg, "exports", ""),
		Logger:         logger,
	})
	if err != nil {
		logger.Error("创建服务器失败", "error", err)
		os.Exit(1)
	}

	// 构建地址
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	url := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)

	// 启动服务器
	go func() {
		fmt.Printf("服务启动中，监听端口 %d ...\n", cfg.Server.Port)
		if err := srv.Run(addr); err != nil {
			logger.Error("服务启动失败", "error", err)
			os.Exit(1)
		}
	}()

	// 打开浏览器
	if !cfg.Server.DevMode {
		fmt.Printf("正在打开浏览器: %s\n", url)
		if err := util.OpenBrowserWithFallback(url); err != nil {
			fmt.Printf("无法自动打开浏览器，请手动访问: %s\n", url)
		}
	} else {
		fmt.Printf("开发模式: 请访问 %s\n", url)
	}

	fmt.Println("\n按 Ctrl+C 停止服务...")

	// 等待信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n正在关闭服务...")
}

// applyFlags 命令行参数覆盖配置；参数值只在显式传入时生效
func applyFlags(cfg *config.AppConfig, info config.LoadConfigInfo) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			if *port > 0 && !info.PortSpecified {
				cfg.Server.Port = *port
			}
		case "dev":
			cfg.Server.DevMode = *devMode
		case "dataDir":
			cfg.Data.DataDir = *dataDir
		case "remote":
			cfg.Remote.BaseURL = *remoteURL
		case "priorityWeeks":
			cfg.Params.PriorityWeeks = *priorityWeeks
		case "priorityWeight":
			cfg.Params.PriorityWeight = *priorityWeight
		case "dateWeight":
			cfg.Params.DateWeight = *dateWeight
		case "maxWorkers":
			cfg.Params.MaxWorkers = *maxWorkers
		}
	})
}
