package database

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormManager GORM数据库管理器
type GormManager struct {
	DB *gorm.DB
}

// NewGormManager 创建新的GORM数据库管理器，dbPath 为空时使用应用数据目录
func NewGormManager(dbPath string) (*GormManager, error) {
	dbPath, err := GetDatabasePath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get database path: %w", err)
	}

	// 创建GORM配置，关闭SQL日志
	newLogger := logger.New(
		log.New(log.Writer(), "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             time.Second,   // 慢SQL阈值
			LogLevel:                  logger.Silent, // 日志级别
			IgnoreRecordNotFoundError: true,          // 忽略ErrRecordNotFound错误
			Colorful:                  false,         // 禁用彩色打印
		},
	)

	dsn := fmt.Sprintf("%s?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on", dbPath)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	manager := &GormManager{DB: db}

	// 自动迁移数据库表
	if err := manager.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return manager, nil
}

// Migrate 执行数据库迁移
func (gm *GormManager) Migrate() error {
	return gm.DB.AutoMigrate(&Session{}, &ScriptLine{}, &VoiceAssignment{}, &AudioUnit{}, &SceneClip{}, &ProcessStep{})
}

// Close 关闭数据库连接
func (gm *GormManager) Close() error {
	sqlDB, err := gm.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateSession 创建会话
func (gm *GormManager) CreateSession(session *Session) error {
	if session.Status == "" {
		session.Status = StatusPending
	}
	result := gm.DB.Omit(clause.Associations).Create(session)
	if result.Error != nil {
		return fmt.Errorf("failed to create session: %w", result.Error)
	}
	return nil
}

// GetSession 根据ID获取会话及全部子记录，不存在时返回 nil, nil
func (gm *GormManager) GetSession(id string) (*Session, error) {
	var session Session
	result := gm.DB.
		Preload("Lines", orderBy("position")).
		Preload("Assignments", orderBy("speaker")).
		Preload("AudioUnits", orderBy("unit_order")).
		Preload("Clips", orderBy("clip_order")).
		Preload("Steps", orderBy("id")).
		First(&session, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", result.Error)
	}

	return &session, nil
}

func orderBy(column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(column)
	}
}

// ListSessions 按创建时间倒序列出会话，不加载子记录
func (gm *GormManager) ListSessions() ([]Session, error) {
	var sessions []Session
	result := gm.DB.Order("created_at desc").Find(&sessions)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", result.Error)
	}
	return sessions, nil
}

// ReplaceSession 在一个事务里保存会话并整体替换子记录
func (gm *GormManager) ReplaceSession(session *Session) error {
	return gm.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(session).Error; err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}

		children := []struct {
			model interface{}
			rows  interface{}
			count int
		}{
			{&ScriptLine{}, &session.Lines, len(session.Lines)},
			{&VoiceAssignment{}, &session.Assignments, len(session.Assignments)},
			{&AudioUnit{}, &session.AudioUnits, len(session.AudioUnits)},
			{&SceneClip{}, &session.Clips, len(session.Clips)},
			{&ProcessStep{}, &session.Steps, len(session.Steps)},
		}
		for _, c := range children {
			if err := tx.Unscoped().Where("session_id = ?", session.ID).Delete(c.model).Error; err != nil {
				return fmt.Errorf("failed to clear %T: %w", c.model, err)
			}
		}

		resetChildren(session)
		for _, c := range children {
			if c.count == 0 {
				continue
			}
			if err := tx.Create(c.rows).Error; err != nil {
				return fmt.Errorf("failed to create %T: %w", c.model, err)
			}
		}
		return nil
	})
}

// resetChildren 清空子记录主键并挂到当前会话
func resetChildren(s *Session) {
	for i := range s.Lines {
		s.Lines[i].ID, s.Lines[i].SessionID = 0, s.ID
	}
	for i := range s.Assignments {
		s.Assignments[i].ID, s.Assignments[i].SessionID = 0, s.ID
	}
	for i := range s.AudioUnits {
		s.AudioUnits[i].ID, s.AudioUnits[i].SessionID = 0, s.ID
	}
	for i := range s.Clips {
		s.Clips[i].ID, s.Clips[i].SessionID = 0, s.ID
	}
	for i := range s.Steps {
		s.Steps[i].ID, s.Steps[i].SessionID = 0, s.ID
	}
}

// UpdateSessionStatus 更新会话状态
func (gm *GormManager) UpdateSessionStatus(id string, status ProcessStatus, errorMsg string) error {
	result := gm.DB.Model(&Session{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"error_msg":  errorMsg,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update session status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update session status: %w", gorm.ErrRecordNotFound)
	}

	return nil
}

// FailInterrupted 把上次进程退出时仍在处理中的会话标记为失败，返回处理的数量
func (gm *GormManager) FailInterrupted(reason string) (int, error) {
	var ids []string
	if err := gm.DB.Model(&Session{}).Where("status = ?", StatusProcessing).Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to query interrupted sessions: %w", err)
	}
	for _, id := range ids {
		if err := gm.UpdateSessionStatus(id, StatusFailed, reason); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// DeleteSession 软删除会话，子记录物理删除
func (gm *GormManager) DeleteSession(id string) error {
	return gm.DB.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&ScriptLine{}, &VoiceAssignment{}, &AudioUnit{}, &SceneClip{}, &ProcessStep{}} {
			if err := tx.Unscoped().Where("session_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete session children: %w", err)
			}
		}
		if err := tx.Delete(&Session{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	})
}
