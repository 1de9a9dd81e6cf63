/*HTTP 接口*/
package web

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/broadcast"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/config"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/workflow"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server HTTP 服务
type Server struct {
	cfg       *config.Config
	processor *workflow.Processor
	events    *broadcast.BroadcastService
	logger    *zap.Logger
	engine    *gin.Engine

	// 生成任务使用服务生命周期的 context，客户端断开不会中断渲染
	baseCtx context.Context
}

// NewServer 创建 HTTP 服务并注册路由
func NewServer(ctx context.Context, cfg *config.Config, processor *workflow.Processor,
	events *broadcast.BroadcastService, logger *zap.Logger) *Server {

	s := &Server{
		cfg:       cfg,
		processor: processor,
		events:    events,
		logger:    logger,
		baseCtx:   ctx,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/ws", s.wsEndpoint)
	r.GET("/api/health", s.healthHandler)
	r.GET("/api/voices", s.voicesHandler)

	api := r.Group("/api/sessions")
	api.GET("", s.listSessionsHandler)
	api.POST("", s.createSessionHandler)
	api.GET("/:id", s.getSessionHandler)
	api.DELETE("/:id", s.deleteSessionHandler)
	api.PUT("/:id/script", s.scriptHandler)
	api.GET("/:id/analysis", s.analysisHandler)
	api.PUT("/:id/voices/:speaker", s.assignVoiceHandler)
	api.POST("/:id/audio", s.audioHandler)
	api.POST("/:id/video", s.videoHandler)

	chars := r.Group("/api/characters")
	chars.GET("", s.listCharactersHandler)
	chars.POST("", s.uploadCharacterHandler)
	chars.DELETE("/:name", s.deleteCharacterHandler)

	// 成片和字幕
	os.MkdirAll(cfg.Paths.Output, 0755)
	r.Static("/files/output", cfg.Paths.Output)

	s.engine = r
	return s
}

// Handler 路由
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 监听 server.addr，ctx 结束后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP 服务启动", zap.String("addr", s.cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("HTTP 服务关闭中")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP 请求",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
