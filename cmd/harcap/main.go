package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdphar/internal/config"
	"cdphar/internal/logger"
	"cdphar/internal/storage"
	"cdphar/pkg/api"
	"cdphar/pkg/model"
)

// main 命令行入口：附加调试端点、捕获网络流量并输出 HAR 归档
func main() {
	var (
		cfgPath  = flag.String("config", "config.yaml", "配置文件路径")
		devtools = flag.String("devtools", "http://127.0.0.1:9222", "DevTools 调试端点")
		target   = flag.String("target", "", "目标标识，空则取第一个页面")
		duration = flag.Duration("duration", 0, "捕获时长，0 表示直到 Ctrl-C")
		out      = flag.String("out", "recording.har", "HAR 输出文件")
		list     = flag.Bool("list", false, "仅列出可附加目标")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "加载配置失败:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Writer: cfg.Log.Writer,
		File:   cfg.Log.File,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc := api.NewService(log, defaultOptions(cfg))

	if *list {
		targets, err := svc.ListTargets(ctx, *devtools)
		if err != nil {
			log.Err(err, "列出目标失败")
			os.Exit(1)
		}
		for _, t := range targets {
			fmt.Printf("%s\t%s\t%s\n", t.ID, t.Type, t.URL)
		}
		return
	}

	lid := svc.AddListener(func(n model.Notification) {
		switch n.Type {
		case model.NotifyRequest, model.NotifyResponse, model.NotifyComplete, model.NotifyFailed:
			tx := n.Transaction
			log.Info("捕获进度", "type", n.Type, "id", tx.ID, "method", tx.Method,
				"url", tx.URL, "status", tx.Status)
		}
	})
	defer svc.RemoveListener(lid)

	startedAt := time.Now()
	if err := svc.Start(ctx, *devtools, model.TargetID(*target), nil); err != nil {
		log.Err(err, "启动捕获失败")
		os.Exit(1)
	}

	if *duration > 0 {
		select {
		case <-time.After(*duration):
		case <-ctx.Done():
		}
	} else {
		<-ctx.Done()
	}

	doc := svc.Stop(context.Background())
	if doc == nil {
		log.Warn("无活动捕获会话")
		return
	}

	stats := svc.Stats()
	log.Info("捕获完成", "total", stats.Total, "entries", len(doc.Log.Entries))

	// 与归档存储一致，输出文件同样使用紧凑格式
	data, err := json.Marshal(doc)
	if err != nil {
		log.Err(err, "序列化归档失败")
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		log.Err(err, "写入归档文件失败")
		os.Exit(1)
	}
	log.Info("归档已写入", "path", *out)

	store, err := storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, cfg.Capture.BodySizeThreshold, log)
	if err != nil {
		log.Err(err, "打开归档存储失败")
		os.Exit(1)
	}
	pageTitle := ""
	if len(doc.Log.Pages) > 0 {
		pageTitle = doc.Log.Pages[0].Title
	}
	id, err := store.SaveArchive(doc, pageTitle, startedAt)
	if err != nil {
		log.Err(err, "归档入库失败")
		os.Exit(1)
	}
	log.Info("捕获记录已保存", "id", id)
}

// defaultOptions 由配置构造默认捕获选项
func defaultOptions(cfg *config.Config) model.CaptureOptions {
	cats := make([]model.ResourceCategory, 0, len(cfg.Capture.Categories))
	for _, c := range cfg.Capture.Categories {
		cats = append(cats, model.ResourceCategory(c))
	}
	return model.CaptureOptions{
		Categories:            cats,
		MaxTotalBufferSize:    cfg.Capture.MaxTotalBufferSize,
		MaxResourceBufferSize: cfg.Capture.MaxResourceBufferSize,
	}
}
