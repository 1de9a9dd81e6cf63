package main

import (
	"fmt"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/broadcast"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/characters"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/mcp"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveAddr string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务 (REST + WebSocket 进度推送)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "以 MCP stdio 模式运行，供 AI 代理调用",
		Args:  cobra.NoArgs,
		RunE:  runMCP,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "监听地址 (默认 server.addr)")
	rootCmd.AddCommand(serveCmd, mcpCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, cancel := signalContext()
	defer cancel()

	events := broadcast.NewBroadcastService()
	workflowLogger := broadcast.Tee(logger, "workflow", events)

	a, err := newApp(true, events, workflowLogger)
	if err != nil {
		return err
	}
	a.startEvents()
	defer a.Close()

	// 角色目录变化实时推送
	go func() {
		err := a.registry.Watch(ctx, func(assets characters.Assets) {
			events.SendLog("characters", fmt.Sprintf("角色目录已更新: %v", assets.Names()))
		})
		if err != nil {
			logger.Warn("角色目录监听退出", zap.Error(err))
		}
	}()

	server := web.NewServer(ctx, cfg, a.processor, events, logger)
	return server.Run(ctx)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(true, nil, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	go func() {
		err := a.registry.Watch(ctx, func(assets characters.Assets) {
			logger.Info("角色目录已更新", zap.Strings("characters", assets.Names()))
		})
		if err != nil {
			logger.Warn("角色目录监听退出", zap.Error(err))
		}
	}()

	return mcp.NewServer(a.processor, logger).Start(ctx)
}
