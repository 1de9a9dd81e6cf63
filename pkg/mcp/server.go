package mcp

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/workflow"
	mcp_server "github.com/mark3labs/mcp-go/server"

	"go.uber.org/zap"
)

const (
	serverName    = "dialogue-video-workflow"
	serverVersion = "1.0.0"
)

type Server struct {
	server    *mcp_server.MCPServer
	processor *workflow.Processor
	logger    *zap.Logger
	handler   *Handler
}

// NewServer 创建 MCP 服务器并注册全部工具
func NewServer(processor *workflow.Processor, logger *zap.Logger) *Server {
	mcpServer := mcp_server.NewMCPServer(
		serverName,
		serverVersion,
		mcp_server.WithToolCapabilities(true),
		mcp_server.WithRecovery(),
	)

	s := &Server{
		server:    mcpServer,
		processor: processor,
		logger:    logger,
	}

	s.handler = NewHandler(s.server, processor, logger)
	s.handler.RegisterTools()
	return s
}

// Start 通过标准输入输出提供服务，直到输入结束或 ctx 取消
func (s *Server) Start(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve 在给定的读写流上处理 JSON-RPC 消息。ctx 取消视为正常退出。
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("MCP 服务启动", zap.Strings("tools", s.GetToolNames()))
	err := mcp_server.NewStdioServer(s.server).Listen(ctx, in, out)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		s.logger.Info("MCP 服务已停止")
		return nil
	}
	s.logger.Error("MCP 服务异常退出", zap.Error(err))
	return err
}

func (s *Server) GetToolNames() []string {
	return s.handler.GetToolNames()
}

// GetHandler 返回处理器，用于直接调用工具
func (s *Server) GetHandler() *Handler {
	return s.handler
}
