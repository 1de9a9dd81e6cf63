package database

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 包含公共字段
type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt MyTime         `json:"created_at"`
	UpdatedAt MyTime         `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeSave 维护时间戳，MyTime 不会被 GORM 自动识别为时间字段
func (m *BaseModel) BeforeSave(tx *gorm.DB) error {
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = MyTime{now}
	}
	m.UpdatedAt = MyTime{now}
	return nil
}

// Session 会话模型 - 一次剧本到视频的完整处理
type Session struct {
	ID           string            `gorm:"primaryKey" json:"id"`                    // uuid
	CreatedAt    MyTime            `json:"created_at"`                              // 创建时间
	UpdatedAt    MyTime            `json:"updated_at"`                              // 更新时间
	DeletedAt    gorm.DeletedAt    `gorm:"index" json:"-"`                          // 软删除
	Name         string            `json:"name"`                                    // 会话名称
	Script       string            `json:"script"`                                  // 原始剧本
	Status       ProcessStatus     `json:"status" gorm:"default:pending"`           // 整体状态
	ErrorMsg     string            `json:"error_msg,omitempty"`                     // 错误信息
	OutputPath   string            `json:"output_path,omitempty"`                   // 成片路径
	SubtitlePath string            `json:"subtitle_path,omitempty"`                 // 字幕路径
	Lines        []ScriptLine      `json:"lines" gorm:"foreignKey:SessionID"`       // 解析后的台词
	Assignments  []VoiceAssignment `json:"assignments" gorm:"foreignKey:SessionID"` // 声音分配
	AudioUnits   []AudioUnit       `json:"audio_units" gorm:"foreignKey:SessionID"` // 音频单元
	Clips        []SceneClip       `json:"clips" gorm:"foreignKey:SessionID"`       // 场景片段
	Steps        []ProcessStep     `json:"steps" gorm:"foreignKey:SessionID"`       // 处理步骤
}

// BeforeSave 维护时间戳
func (s *Session) BeforeSave(tx *gorm.DB) error {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = MyTime{now}
	}
	s.UpdatedAt = MyTime{now}
	return nil
}

// ScriptLine 台词记录
type ScriptLine struct {
	BaseModel
	SessionID    string `json:"session_id" gorm:"index"`
	Position     int    `json:"position"`
	Speaker      string `json:"speaker"`
	Dialogue     string `json:"dialogue"`
	OriginalLine string `json:"original_line"`
}

// VoiceAssignment 说话人声音分配
type VoiceAssignment struct {
	BaseModel
	SessionID string `json:"session_id" gorm:"index"`
	Speaker   string `json:"speaker"`
	VoiceID   string `json:"voice_id"`
}

// AudioUnit 音频单元。跳过或失败的台词也会记录，Status 区分。
type AudioUnit struct {
	BaseModel
	SessionID string        `json:"session_id" gorm:"index"`
	Order     int           `json:"order" gorm:"column:unit_order"`
	Speaker   string        `json:"speaker"`
	Dialogue  string        `json:"dialogue"`
	VoiceID   string        `json:"voice_id,omitempty"`
	AudioPath string        `json:"audio_path,omitempty"`
	Estimated float64       `json:"estimated_seconds"`             // 按语速估算的时长
	Status    ProcessStatus `json:"status" gorm:"default:pending"` // completed / skipped / failed
	ErrorMsg  string        `json:"error_msg,omitempty"`           // 跳过或失败原因
}

// SceneClip 场景片段
type SceneClip struct {
	BaseModel
	SessionID  string        `json:"session_id" gorm:"index"`
	Order      int           `json:"order" gorm:"column:clip_order"`
	Camera     string        `json:"camera"`
	Background string        `json:"background"`
	VideoPath  string        `json:"video_path,omitempty"`
	Duration   float64       `json:"duration"`                      // 秒，等于台词音频时长
	Status     ProcessStatus `json:"status" gorm:"default:pending"`
	ErrorMsg   string        `json:"error_msg,omitempty"`
}

// ProcessStep 处理步骤记录模型
type ProcessStep struct {
	BaseModel
	SessionID string        `json:"session_id" gorm:"index"`       // 关联会话ID
	StepName  string        `json:"step_name"`                     // 步骤名称：parse, audio, video 等
	Status    ProcessStatus `json:"status" gorm:"default:pending"` // 步骤状态
	ErrorMsg  string        `json:"error_msg,omitempty"`           // 错误信息
	StartTime MyTime        `json:"start_time,omitempty"`          // 开始时间
	EndTime   MyTime        `json:"end_time,omitempty"`            // 结束时间
	Duration  int64         `json:"duration"`                      // 耗时（毫秒）
	Details   string        `json:"details,omitempty"`             // 详细信息
}
