package database

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// AppName 应用数据目录名
const AppName = "dialogue-video-workflow"

// GetAppDataPath 获取应用数据存储路径
func GetAppDataPath(appName string) (string, error) {
	usr, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}

	var appDataPath string
	switch runtime.GOOS {
	case "windows":
		appDataPath = filepath.Join(usr.HomeDir, "AppData", "Local", appName)
	case "darwin": // macOS
		appDataPath = filepath.Join(usr.HomeDir, "Library", "Application Support", appName)
	case "linux", "freebsd", "openbsd":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			appDataPath = filepath.Join(xdg, appName)
		} else {
			appDataPath = filepath.Join(usr.HomeDir, ".local", "share", appName)
		}
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	// 确保目录存在
	if err := os.MkdirAll(appDataPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create app data directory: %w", err)
	}

	return appDataPath, nil
}

// GetDatabasePath 获取数据库文件路径。configured 非空时直接使用。
func GetDatabasePath(configured string) (string, error) {
	if configured != "" {
		if err := os.MkdirAll(filepath.Dir(configured), 0755); err != nil {
			return "", fmt.Errorf("failed to create database directory: %w", err)
		}
		return configured, nil
	}

	appDataPath, err := GetAppDataPath(AppName)
	if err != nil {
		return "", err
	}

	return filepath.Join(appDataPath, "sessions.sqlite"), nil
}
