package database

import (
	"fmt"
)

// InitDatabase 初始化数据库连接和表结构，返回实际使用的数据库文件
func InitDatabase(configured string) (string, error) {
	dbPath, err := GetDatabasePath(configured)
	if err != nil {
		return "", err
	}

	// 创建数据库管理器，这将自动执行迁移
	manager, err := NewGormManager(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbPath, manager.Close()
}
