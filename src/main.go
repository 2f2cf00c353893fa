package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/robfig/cron"

	"FareInsight/src/config"
	"FareInsight/src/datapush"
	"FareInsight/src/datasource/email"
	"FareInsight/src/datasource/file"
	"FareInsight/src/export"
	"FareInsight/src/processor"
	"FareInsight/src/report"
	"FareInsight/src/storage"
)

func main() {
	configDir := flag.String("config", "./config", "配置文件目录")
	inputFile := flag.String("input", "", "输入数据文件，覆盖配置中的input_file")
	watch := flag.Bool("watch", false, "常驻模式：轮询邮箱并监控数据目录")
	flag.Parse()

	cfg, dcfg, err := config.LoadConfig(*configDir, "config.json", "dataconfig.json")
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志系统
	logName := cfg.LogName
	if logName == "" {
		logName = "app.log"
	}
	logger, err := storage.NewLogger(logName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	if cfg.LogMaxSize != "" {
		if err := logger.CheckRotate(cfg.LogMaxSize); err != nil {
			logger.Warning("日志轮转检查失败: " + err.Error())
		}
	}

	// 默认单次运行：处理指定文件后退出
	if !*watch {
		input := *inputFile
		if input == "" {
			input = cfg.InputFile
		}
		if input == "" {
			logger.Fatal("未指定输入文件(使用-input或配置input_file)")
			os.Exit(1)
		}
		if err := runPipeline(input, cfg, dcfg, logger); err != nil {
			logger.Fatal("分析失败: " + err.Error())
			os.Exit(1)
		}
		return
	}

	runWatchMode(cfg, dcfg, logger)
}

// runWatchMode 常驻模式：定时查邮箱拉取新数据附件，同时监控数据目录的文件落盘
func runWatchMode(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) {
	// 邮箱地址，用户名和密码
	emailClient := email.NewEmailClient(
		cfg.Email.Server,
		cfg.Email.Username,
		cfg.Email.Password)

	handler := email.NewTripAttachmentHandler(cfg.DataDir)

	// 设置定时任务
	c := cron.New()

	// 使用配置中的检查间隔而不是硬编码的1分钟
	interval := time.Duration(cfg.Email.CheckInterval).String() // 例如 "5m0s"
	cronSpec := fmt.Sprintf("@every %s", interval)

	// 添加定时任务
	err := c.AddFunc(cronSpec, func() {
		logger.Info(fmt.Sprintf("开始定时检查(间隔: %v)...", cronSpec))

		newEmail, err := email.CheckAndProcessEmails(emailClient, cfg.Email.TargetSubject, logger)
		if err != nil {
			logger.Error("检查处理邮件失败: " + err.Error())
			return
		}
		if newEmail == nil {
			return
		}

		// 附件落盘后交给文件监控触发分析，避免同一份数据处理两次
		filePath, err := handler.SaveTripAttachment(newEmail)
		if err != nil {
			logger.Error(fmt.Sprintf("处理邮件失败(UID:%d): %v", newEmail.UID, err))
			return
		}
		logger.Info("已保存新数据文件: " + filePath)
	})

	if err != nil {
		logger.Error("创建定时任务失败: " + err.Error())
		return
	}

	// 启动定时任务
	c.Start()
	defer c.Stop()

	// 监控数据目录，新文件落盘即触发一次完整分析
	monitor, err := file.NewFileMonitor(cfg.DataDir)
	if err != nil {
		logger.Error("创建文件监控失败: " + err.Error())
		return
	}
	defer monitor.Close()

	go func() {
		err := monitor.Watch(func(filePath string) {
			logger.Info("检测到新数据文件: " + filePath)
			if err := runPipeline(filePath, cfg, dcfg, logger); err != nil {
				logger.Error("分析失败: " + err.Error())
			}
		})
		if err != nil {
			logger.Error("文件监控错误: " + err.Error())
		}
	}()

	go startWebUI(logger)

	logger.Info(fmt.Sprintf("数据监控服务已启动(检查间隔: %v)，按Ctrl+C退出", interval))
	waitForShutdown(logger)
}

// runPipeline 完整流水线：读取 -> 清洗 -> 特征 -> 聚合分析 -> 导出 -> 通知
func runPipeline(filePath string, cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) error {
	t1 := time.Now()
	logger.Info("开始处理: " + filePath)

	raw, err := file.ReadTable(filePath, cfg.SheetName)
	if err != nil {
		return fmt.Errorf("读取数据失败: %w", err)
	}

	cleaner := processor.NewCleaner(dcfg)
	cleaned, cleanReport, err := cleaner.Run(raw)
	if err != nil {
		return fmt.Errorf("清洗失败: %w", err)
	}
	logger.Info(fmt.Sprintf("清洗完成: %d -> %d 行(保留 %.1f%%)",
		cleanReport.OriginalRows, cleanReport.FinalRows, cleanReport.RetentionRate()*100))

	engineer := processor.NewFeatureEngineer(dcfg)
	enhanced, featReport, err := engineer.Run(cleaned)
	if err != nil {
		return fmt.Errorf("特征衍生失败: %w", err)
	}
	logger.Info(fmt.Sprintf("特征衍生完成: 新增 %d 列", len(featReport.AddedColumns)))

	analytics := processor.NewAnalytics(dcfg)
	analysis, err := analytics.Run(enhanced)
	if err != nil {
		return fmt.Errorf("聚合分析失败: %w", err)
	}

	// 控制台摘要
	printer := report.NewPrinter(os.Stdout)
	printer.CleaningSummary(cleanReport)
	printer.FeatureSummary(featReport)
	printer.AnalysisSummary(analysis)

	// 导出全部产物
	exporter := export.NewExporter(cfg.OutputDir, cfg.OutputPrefix)
	outputs, err := exportAll(exporter, cleaned, enhanced, analysis)
	if err != nil {
		return fmt.Errorf("导出失败: %w", err)
	}
	for _, p := range outputs {
		logger.Info("已导出: " + p)
	}

	// 结果通知
	if cfg.SendEmail.Enabled {
		body := resultMailBody(cleanReport, analysis)
		attachments := pickMailAttachments(outputs)
		if err := email.SendResultEmail(cfg, body, attachments); err != nil {
			logger.Error("发送结果邮件失败: " + err.Error())
		} else {
			logger.Info("结果邮件已发送: " + cfg.SendEmail.Recipient)
		}
	}

	if cfg.Webhook.Enabled {
		pusher := datapush.NewWebhookPusher(cfg.Webhook)
		summary := datapush.RunSummary{
			SourceFile:    filePath,
			FinishedAt:    time.Now(),
			OriginalRows:  cleanReport.OriginalRows,
			CleanedRows:   cleanReport.FinalRows,
			RetentionRate: cleanReport.RetentionRate(),
			KPI:           analysis.KPI,
			OutputFiles:   outputs,
			Warnings:      analysis.Warnings,
		}
		if err := pusher.PushSummary(summary); err != nil {
			logger.Error("推送运行摘要失败: " + err.Error())
		} else {
			logger.Info("运行摘要已推送")
		}
	}

	logger.Info(fmt.Sprintf("处理完成，耗时: %v", time.Since(t1)))
	return nil
}

// exportAll 写出全部导出文件，返回文件路径列表
func exportAll(exporter *export.Exporter, cleaned, enhanced dataframe.DataFrame, analysis *processor.AnalysisReport) ([]string, error) {
	var outputs []string

	p, err := exporter.WriteCleaned(cleaned)
	if err != nil {
		return outputs, err
	}
	outputs = append(outputs, p)

	if p, err = exporter.WriteEnhanced(enhanced); err != nil {
		return outputs, err
	}
	outputs = append(outputs, p)

	if p, err = exporter.WriteTableauReady(enhanced); err != nil {
		return outputs, err
	}
	outputs = append(outputs, p)

	if p, err = exporter.WriteKPISummary(analysis.KPI); err != nil {
		return outputs, err
	}
	outputs = append(outputs, p)

	aggPaths, err := exporter.WriteAggregations(analysis)
	if err != nil {
		return outputs, err
	}
	outputs = append(outputs, aggPaths...)

	if p, err = exporter.WriteWorkbook(analysis); err != nil {
		return outputs, err
	}
	outputs = append(outputs, p)

	if p, err = exporter.WriteHTMLReport(analysis, time.Now().Format(processor.CanonicalTimeLayout)); err != nil {
		return outputs, err
	}
	outputs = append(outputs, p)

	if p, err = exporter.WriteInstructions(); err != nil {
		return outputs, err
	}
	outputs = append(outputs, p)

	return outputs, nil
}

// pickMailAttachments 邮件只附带轻量产物，明细csv太大不随邮件发送
func pickMailAttachments(outputs []string) []string {
	var picked []string
	for _, p := range outputs {
		if strings.HasSuffix(p, "kpi_summary.csv") ||
			strings.HasSuffix(p, "analysis.xlsx") ||
			strings.HasSuffix(p, "analysis_report.html") {
			picked = append(picked, p)
		}
	}
	return picked
}

// resultMailBody 结果邮件正文
func resultMailBody(cleanReport *processor.CleaningReport, analysis *processor.AnalysisReport) string {
	kpi := analysis.KPI
	return fmt.Sprintf(`Taxi fare analysis finished.

Rows: %d -> %d (%.1f%% retained)
Total rides: %d
Total revenue: $%.2f
Average fare: $%.2f
Average distance: %.2f km
Busiest hour: %d:00
Busiest day: %s
Top borough: %s

KPI summary and dashboard files are attached.
`,
		cleanReport.OriginalRows, cleanReport.FinalRows, cleanReport.RetentionRate()*100,
		kpi.TotalRides, kpi.TotalRevenue, kpi.AvgFare, kpi.AvgDistanceKM,
		kpi.BusiestHour, kpi.BusiestDay, kpi.TopBorough)
}

// startWebUI 启动一个简单的Web界面来显示实时日志
// 参数:
//
//	logger: 日志记录器实例，用于订阅日志消息
func startWebUI(logger *storage.Logger) {
	// 注册/logs路由的处理函数
	http.HandleFunc("/logs", func(w http.ResponseWriter, r *http.Request) {
		// 设置响应头
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Transfer-Encoding", "chunked")

		// 创建日志订阅通道
		logChan := logger.Subscribe()

		// 无限循环，持续接收日志消息
		for {
			select {
			case msg := <-logChan:
				// 将日志消息写入HTTP响应
				_, err := fmt.Fprintln(w, msg)
				if err != nil {
					// 如果写入失败(如客户端断开连接)，则退出循环
					return
				}
				// 刷新响应缓冲区，确保消息立即发送到客户端
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			case <-r.Context().Done():
				// 如果客户端断开连接，则退出循环
				return
			}
		}
	})

	http.ListenAndServe(":8080", nil)
}

func waitForShutdown(logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal: " + sig.String() + ", shutting down...")
	logger.Close()
	os.Exit(0)
}
