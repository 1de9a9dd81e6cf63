package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/broadcast"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/characters"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/config"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/database"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/session"
	tts "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/tts"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	debug      bool

	cfg    *config.Config
	logger *zap.Logger

	rootCmd = &cobra.Command{
		Use:           "dvw",
		Short:         "把对白剧本渲染成带配音的幻灯片视频",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(configFile)
			if err != nil {
				return err
			}
			if debug {
				cfg.Log.Level = "debug"
				cfg.Log.Development = true
			}
			logger, err = config.NewLogger(cfg.Log)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "配置文件路径 (默认依次查找 ./config.yaml 和可执行文件目录)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "输出调试日志")
}

// app 一次命令运行需要的全部组件
type app struct {
	processor *workflow.Processor
	events    *broadcast.BroadcastService
	registry  *characters.Registry
	db        *database.GormManager

	wg sync.WaitGroup
}

// newApp 组装工作流。persistent 为 true 时会话保存到 sqlite，否则只在内存中。
func newApp(persistent bool, events *broadcast.BroadcastService, log *zap.Logger) (*app, error) {
	synth, err := tts.NewEspeakEngine(cfg.Audio.Engine, log)
	if err != nil {
		return nil, fmt.Errorf("语音引擎不可用: %w", err)
	}

	registry, err := characters.NewRegistry(cfg.Paths.Characters, log)
	if err != nil {
		return nil, err
	}

	a := &app{events: events, registry: registry}

	var store session.Store = session.NewMemoryStore()
	if persistent {
		dbPath, err := database.GetDatabasePath(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		a.db, err = database.NewGormManager(dbPath)
		if err != nil {
			return nil, err
		}
		log.Info("会话数据库", zap.String("path", dbPath))
		if n, err := a.db.FailInterrupted("进程中断"); err != nil {
			log.Warn("恢复中断会话失败", zap.Error(err))
		} else if n > 0 {
			log.Warn("上次未完成的会话已标记为失败", zap.Int("count", n))
		}
		store = session.NewGormStore(a.db)
	}

	sessions := session.NewManager(store, log)
	a.processor = workflow.NewProcessor(cfg, synth, registry, sessions, events, log)
	return a, nil
}

// startEvents 启动广播服务
func (a *app) startEvents() {
	if a.events == nil {
		return
	}
	a.wg.Add(1)
	go a.events.Start(&a.wg)
}

func (a *app) Close() {
	if a.events != nil {
		a.events.Close()
	}
	a.wg.Wait()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn("关闭数据库失败", zap.Error(err))
		}
	}
}

// signalContext SIGINT/SIGTERM 时取消
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
