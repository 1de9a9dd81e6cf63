package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/voice"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/workflow"
	mcp "github.com/mark3labs/mcp-go/mcp"
	mcp_server "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Handler 处理 MCP 工具调用
type Handler struct {
	server    *mcp_server.MCPServer
	processor *workflow.Processor
	logger    *zap.Logger
	toolNames []string
}

// NewHandler 创建处理器
func NewHandler(server *mcp_server.MCPServer, processor *workflow.Processor, logger *zap.Logger) *Handler {
	return &Handler{
		server:    server,
		processor: processor,
		logger:    logger,
		toolNames: make([]string, 0),
	}
}

// RegisterTools 注册全部工具
func (h *Handler) RegisterTools() {
	parseScriptTool := mcp.NewTool("parse_script",
		mcp.WithDescription("Parse a dialogue script into speaker lines and report missing character images and voices"),
		mcp.WithString("script", mcp.Required(), mcp.Description("Script text, one line per dialogue")),
		mcp.WithString("name", mcp.Description("Session name")),
	)
	h.server.AddTool(parseScriptTool, h.handleParseScript)
	h.toolNames = append(h.toolNames, "parse_script")

	listVoicesTool := mcp.NewTool("list_voices",
		mcp.WithDescription("List the voices installed for speech synthesis"),
	)
	h.server.AddTool(listVoicesTool, h.handleListVoices)
	h.toolNames = append(h.toolNames, "list_voices")

	renderScriptTool := mcp.NewTool("render_script",
		mcp.WithDescription("Render a dialogue script into a slideshow video with synthesized voices"),
		mcp.WithString("script", mcp.Required(), mcp.Description("Script text, one line per dialogue")),
		mcp.WithString("voices", mcp.Required(), mcp.Description("Voice assignments, e.g. john=en-us,sarah=en-gb")),
		mcp.WithString("name", mcp.Description("Output name")),
	)
	h.server.AddTool(renderScriptTool, h.handleRenderScript)
	h.toolNames = append(h.toolNames, "render_script")

	getSessionTool := mcp.NewTool("get_session",
		mcp.WithDescription("Get the state of a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
	)
	h.server.AddTool(getSessionTool, h.handleGetSession)
	h.toolNames = append(h.toolNames, "get_session")

	h.logger.Info("MCP 工具已注册", zap.Int("tool_count", len(h.toolNames)))
}

// GetToolNames 已注册的工具名
func (h *Handler) GetToolNames() []string {
	return append([]string(nil), h.toolNames...)
}

func (h *Handler) handleParseScript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("script")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: script"), nil
	}
	name := request.GetString("name", "")

	state, err := h.processor.Sessions().Create(name)
	if err != nil {
		h.logger.Error("创建会话失败", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create session: %v", err)), nil
	}
	if _, err := h.processor.ParseScript(state.ID, text); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse script: %v", err)), nil
	}
	analysis, err := h.processor.Analyze(state.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to analyze script: %v", err)), nil
	}
	return jsonResult(h.logger, analysis)
}

func (h *Handler) handleListVoices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	voices, err := h.processor.Voices(ctx)
	if err != nil {
		h.logger.Error("获取声音列表失败", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list voices: %v", err)), nil
	}
	return jsonResult(h.logger, voices)
}

func (h *Handler) handleRenderScript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("script")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: script"), nil
	}
	pairs, err := request.RequireString("voices")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: voices"), nil
	}
	assignments, err := voice.ParsePairs([]string{pairs})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := h.processor.Render(ctx, workflow.Job{
		Name:        request.GetString("name", ""),
		Script:      text,
		Assignments: assignments,
	})
	if err != nil {
		h.logger.Error("渲染失败", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to render script: %v", err)), nil
	}
	return jsonResult(h.logger, result)
}

func (h *Handler) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("Missing required parameter: session_id"), nil
	}
	state, err := h.processor.Sessions().Get(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(h.logger, state)
}

func jsonResult(logger *zap.Logger, v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Error("序列化结果失败", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
