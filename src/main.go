package main

import (
	"DeliveryInsight/src/config"
	"DeliveryInsight/src/datapush"
	"DeliveryInsight/src/datasource/email"
	"DeliveryInsight/src/datasource/file"
	"DeliveryInsight/src/processor"
	"DeliveryInsight/src/storage"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
	"github.com/robfig/cron"
)

var errNoInput = errors.New("未配置输入文件，且邮箱中没有新数据")

// app 一次分析需要的全部依赖
type app struct {
	cfg     *config.Config
	dcfg    *config.DataConfig
	logger  *storage.Logger
	mailbox email.MailService // 未配置 IMAP 时为空
	handler *email.AttachmentHandler
	pusher  *datapush.Pusher // 未配置 webhook 时为空

	sendReport func(cfg *config.Config, attachmentPath, body string) error
	mu         sync.Mutex // 同一时间只跑一次分析
}

func newApp(cfg *config.Config, dcfg *config.DataConfig, logger *storage.Logger) *app {
	a := &app{
		cfg:        cfg,
		dcfg:       dcfg,
		logger:     logger,
		handler:    email.NewAttachmentHandler(cfg.Email.TargetSubject, cfg.DataDir),
		sendReport: email.SendReport,
	}
	if cfg.Email.Server != "" {
		a.mailbox = email.NewEmailClient(cfg.Email.Server, cfg.Email.Username, cfg.Email.Password, logger)
	}
	if cfg.Push.Webhook != "" {
		a.pusher = datapush.NewPusher(cfg.Push.Webhook, cfg.Push.Secret)
	}
	return a
}

func main() {
	jsonFolder := flag.String("config", "./config", "配置目录")
	once := flag.Bool("once", false, "只分析一次后退出")
	flag.Parse()

	cfg, dcfg, err := config.LoadConfig(*jsonFolder, "config.json", "dataconfig.json")
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		log.Fatal("读取环境变量失败:", err)
	}

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	if cfg.PidFile != "" {
		if err := os.WriteFile(cfg.PidFile, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
			logger.Errorf("写入 pid 文件失败: %v", err)
		} else {
			defer os.Remove(cfg.PidFile)
		}
	}

	if cfg.LogHTTPAddr != "" {
		go startWebUI(cfg.LogHTTPAddr, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, logger)

	a := newApp(cfg, dcfg, logger)
	if _, err := a.runOnce(); err != nil {
		logger.Errorf("分析失败: %v", err)
		if *once || !a.longRunning() {
			logger.Close()
			if cfg.PidFile != "" {
				os.Remove(cfg.PidFile)
			}
			os.Exit(1)
		}
	}
	if *once || !a.longRunning() {
		return
	}

	if err := a.serve(ctx); err != nil {
		logger.Errorf("服务退出: %v", err)
	}
	logger.Info("Shutting down...")
}

// longRunning 是否需要常驻：监控文件、定时分析或轮询邮箱
func (a *app) longRunning() bool {
	return a.cfg.Watch || a.interval() > 0
}

// interval 定时间隔，未配置时沿用邮箱检查间隔
func (a *app) interval() time.Duration {
	if a.cfg.ScheduleEvery > 0 {
		return time.Duration(a.cfg.ScheduleEvery)
	}
	if a.mailbox != nil {
		return time.Duration(a.cfg.Email.CheckInterval)
	}
	return 0
}

// serve 阻塞到 ctx 结束
func (a *app) serve(ctx context.Context) error {
	if interval := a.interval(); interval > 0 {
		c := cron.New()
		cronSpec := fmt.Sprintf("@every %s", interval)
		err := c.AddFunc(cronSpec, func() {
			a.logger.Infof("开始定时分析(间隔: %v)...", interval)
			if _, err := a.runOnce(); err != nil {
				a.logger.Errorf("分析失败: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("创建定时任务失败: %w", err)
		}
		c.Start()
		defer c.Stop()
		a.logger.Infof("定时分析已启动(间隔: %v)，按Ctrl+C退出", interval)
	}

	if a.cfg.Watch && a.cfg.InputPath != "" {
		monitor, err := file.NewFileMonitor(a.cfg.InputPath)
		if err != nil {
			return fmt.Errorf("监控文件失败: %w", err)
		}
		defer monitor.Close()
		a.logger.Infof("开始监控文件: %s", a.cfg.InputPath)

		return monitor.Watch(ctx, func(path string) {
			a.logger.Infof("文件已更新: %s", path)
			if _, err := a.runOnce(); err != nil {
				a.logger.Errorf("分析失败: %v", err)
			}
		})
	}

	<-ctx.Done()
	return nil
}

// runOnce 取数据、清洗、汇总、导出，再按配置发送邮件和推送
func (a *app) runOnce() (*processor.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	runID := uuid.NewString()[:8]
	t1 := time.Now()
	a.logger.Infof("[%s] 开始分析", runID)

	input, attachment, err := a.resolveInput()
	if err != nil {
		return nil, err
	}

	opts := file.ReadOptions{
		SheetName:    a.cfg.SheetName,
		Encoding:     a.cfg.InputEncoding,
		DateColumns:  []string{a.dcfg.Column(config.FieldOrderDate)},
		ClockColumns: []string{a.dcfg.Column(config.FieldOrderTime), a.dcfg.Column(config.FieldPickupTime)},
	}
	var df dataframe.DataFrame
	if attachment != nil {
		df, err = file.ReadDatasetBytes(attachment.Filename, attachment.Content, opts)
	} else {
		df, err = file.ReadDataset(input, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", input, err)
	}

	p, err := processor.NewDataProcessor(a.dcfg, a.logger)
	if err != nil {
		return nil, err
	}
	res, err := p.Run(df)
	if err != nil {
		return nil, err
	}

	if err := file.ExportReport(a.cfg.OutputPath, res); err != nil {
		return res, err
	}
	a.logger.Infof("[%s] 报表已保存到: %s", runID, a.cfg.OutputPath)
	if a.cfg.EnrichedPath != "" {
		if err := file.SaveFrame(res.Frame, a.cfg.EnrichedPath, file.SheetEnriched); err != nil {
			return res, err
		}
		a.logger.Infof("[%s] 明细已保存到: %s", runID, a.cfg.EnrichedPath)
	}

	body := res.Summary.Text(res.Report, res.Outliers)
	if a.cfg.SendEmail.Server != "" && len(a.cfg.SendEmail.To) > 0 {
		if err := a.sendReport(a.cfg, a.cfg.OutputPath, body); err != nil {
			a.logger.Errorf("[%s] 发送报表邮件失败: %v", runID, err)
		}
	}
	if a.pusher != nil {
		if err := a.pusher.SendText(body); err != nil {
			a.logger.Errorf("[%s] 钉钉推送失败: %v", runID, err)
		}
	}

	if err := a.logger.CheckRotate(a.cfg); err != nil {
		a.logger.Errorf("日志轮转失败: %v", err)
	}
	a.logger.Infof("[%s] 分析完成，耗时 %v", runID, time.Since(t1))
	return res, nil
}

// resolveInput 邮箱有新数据时优先使用附件。
// 附件直接从内存读取，同时保存一份到 data_dir。
func (a *app) resolveInput() (string, *email.Attachment, error) {
	if a.mailbox != nil {
		newEmail, err := email.CheckAndProcessEmails(a.mailbox, a.cfg.Email.TargetSubject, a.logger)
		if err != nil {
			a.logger.Errorf("检查处理邮件失败: %v", err)
		} else if newEmail != nil {
			path, err := a.handler.Handle(newEmail, a.logger)
			if err != nil {
				return "", nil, fmt.Errorf("处理邮件失败(UID:%d): %w", newEmail.UID, err)
			}
			if path != "" {
				return path, newEmail.Dataset(), nil
			}
		}
	}
	if a.cfg.InputPath == "" {
		return "", nil, errNoInput
	}
	return a.cfg.InputPath, nil, nil
}

// startWebUI 启动一个简单的Web界面来显示实时日志
func startWebUI(addr string, logger *storage.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/logs", logsHandler(logger))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("日志页面退出: %v", err)
	}
}

// logsHandler 以 chunked 方式持续输出日志
func logsHandler(logger *storage.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// 创建日志订阅通道
		logChan := logger.Subscribe()
		defer logger.Unsubscribe(logChan)

		for {
			select {
			case msg, ok := <-logChan:
				if !ok {
					return
				}
				// 如果写入失败(如客户端断开连接)，则退出循环
				if _, err := fmt.Fprint(w, msg); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	}
}

// handleSignals SIGHUP 重新打开日志，SIGINT/SIGTERM 退出
func handleSignals(cancel context.CancelFunc, logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			if err := logger.Reopen(""); err != nil {
				log.Println("重新打开日志失败:", err)
			}
			logger.Info("Received SIGHUP, log reopened")
			continue
		}
		logger.Info("Received signal: " + sig.String() + ", shutting down...")
		signal.Stop(sigChan)
		cancel()
		return
	}
}
