package web

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/characters"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/session"
	tts "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/tts"
	video "github.com/ajaybhaskarbaddula/YT-video-generator/pkg/tools/video"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/voice"
	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/workflow"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createSessionRequest struct {
	Name   string `json:"name"`
	Script string `json:"script"`
}

type scriptRequest struct {
	Script string `json:"script" binding:"required"`
}

type voiceRequest struct {
	VoiceID string `json:"voice_id" binding:"required"`
}

// CharacterInfo 角色图片信息
type CharacterInfo struct {
	Name     string `json:"name"`
	File     string `json:"file"`
	Size     int64  `json:"size"`
	SizeText string `json:"size_text"`
}

// statusFor 错误对应的 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, voice.ErrNarratorVoice), errors.Is(err, voice.ErrUnknownVoice),
		errors.Is(err, characters.ErrInvalidName), errors.Is(err, characters.ErrUnsupportedImage):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrNoScript), errors.Is(err, workflow.ErrNoAudio):
		return http.StatusConflict
	case errors.Is(err, tts.ErrMissingVoices), errors.Is(err, workflow.ErrNoScenes):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("请求处理失败", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error(), "status": "error"})
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tools": video.CheckTools()})
}

func (s *Server) voicesHandler(c *gin.Context) {
	voices, err := s.processor.Voices(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, voices)
}

func (s *Server) listSessionsHandler(c *gin.Context) {
	list, err := s.processor.Sessions().List()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createSessionHandler(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON", "status": "error"})
			return
		}
	}

	state, err := s.processor.Sessions().Create(req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	if req.Script != "" {
		if state, err = s.processor.ParseScript(state.ID, req.Script); err != nil {
			s.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, state)
}

func (s *Server) getSessionHandler(c *gin.Context) {
	state, err := s.processor.Sessions().Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) deleteSessionHandler(c *gin.Context) {
	if err := s.processor.Sessions().Delete(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) scriptHandler(c *gin.Context) {
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "script is required", "status": "error"})
		return
	}
	state, err := s.processor.ParseScript(c.Param("id"), req.Script)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) analysisHandler(c *gin.Context) {
	analysis, err := s.processor.Analyze(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func (s *Server) assignVoiceHandler(c *gin.Context) {
	var req voiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "voice_id is required", "status": "error"})
		return
	}
	state, err := s.processor.AssignVoice(c.Request.Context(), c.Param("id"), c.Param("speaker"), req.VoiceID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state.Assignments)
}

// audioHandler 默认同步返回结果；?async=true 时立即返回 202，进度通过 /ws 推送
func (s *Server) audioHandler(c *gin.Context) {
	id := c.Param("id")
	if c.Query("async") == "true" {
		go func() {
			if _, err := s.processor.GenerateAudio(s.baseCtx, id); err != nil {
				s.logger.Warn("后台音频生成失败", zap.String("session", id), zap.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "processing", "session": id})
		return
	}

	result, err := s.processor.GenerateAudio(s.baseCtx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// videoHandler 同 audioHandler
func (s *Server) videoHandler(c *gin.Context) {
	id := c.Param("id")
	if c.Query("async") == "true" {
		go func() {
			if _, err := s.processor.GenerateVideo(s.baseCtx, id); err != nil {
				s.logger.Warn("后台视频生成失败", zap.String("session", id), zap.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "processing", "session": id})
		return
	}

	result, err := s.processor.GenerateVideo(s.baseCtx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) listCharactersHandler(c *gin.Context) {
	assets := s.processor.Registry().Assets()
	list := make([]CharacterInfo, 0, len(assets))
	for _, name := range assets.Names() {
		info := CharacterInfo{Name: name, File: filepath.Base(assets[name])}
		if st, err := os.Stat(assets[name]); err == nil {
			info.Size = st.Size()
			info.SizeText = humanize.Bytes(uint64(st.Size()))
		}
		list = append(list, info)
	}
	c.JSON(http.StatusOK, list)
}

// uploadCharacterHandler multipart 表单: name 为角色名，file 为图片
func (s *Server) uploadCharacterHandler(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving file", "status": "error"})
		return
	}
	name := c.PostForm("name")
	if name == "" {
		name = fh.Filename[:len(fh.Filename)-len(filepath.Ext(fh.Filename))]
	}

	src, err := fh.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer src.Close()

	path, err := s.processor.Registry().Save(name, filepath.Ext(fh.Filename), src)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"file":   filepath.Base(path),
		"size":   humanize.Bytes(uint64(fh.Size)),
	})
}

func (s *Server) deleteCharacterHandler(c *gin.Context) {
	if err := s.processor.Registry().Delete(c.Param("name")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
