package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type FileManager struct {
	baseDir string
}

// NewFileManager baseDir 下每个会话一个工作目录
func NewFileManager(baseDir string) *FileManager {
	return &FileManager{baseDir: baseDir}
}

// ProjectStructure 单个会话的工作目录，字幕和成片写在 paths.output 下
type ProjectStructure struct {
	ProjectDir    string
	ScriptFile    string
	AudioDir      string
	BackgroundDir string
	SceneDir      string
}

// SceneFile 场景片段路径 scenes/scene_%03d.mp4
func (ps *ProjectStructure) SceneFile(order int) string {
	return filepath.Join(ps.SceneDir, fmt.Sprintf("scene_%03d.mp4", order))
}

// ManifestFile 渲染清单路径
func (ps *ProjectStructure) ManifestFile() string {
	return filepath.Join(ps.ProjectDir, "manifest.json")
}

func (fm *FileManager) CreateProjectStructure(name, script string) (*ProjectStructure, error) {
	if name == "" {
		return nil, fmt.Errorf("项目名称不能为空")
	}

	// 创建项目目录
	projectDir := filepath.Join(fm.baseDir, name)
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return nil, fmt.Errorf("创建项目目录失败: %w", err)
	}

	// 创建子目录
	subdirs := []string{"audio", "backgrounds", "scenes"}
	dirPaths := make(map[string]string)

	for _, subdir := range subdirs {
		dirPath := filepath.Join(projectDir, subdir)
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return nil, fmt.Errorf("创建子目录 %s 失败: %w", subdir, err)
		}
		dirPaths[subdir] = dirPath
	}

	// 保存剧本
	scriptFile := filepath.Join(projectDir, "script.txt")
	if err := os.WriteFile(scriptFile, []byte(script), 0644); err != nil {
		return nil, fmt.Errorf("保存剧本文件失败: %w", err)
	}

	return &ProjectStructure{
		ProjectDir:    projectDir,
		ScriptFile:    scriptFile,
		AudioDir:      dirPaths["audio"],
		BackgroundDir: dirPaths["backgrounds"],
		SceneDir:      dirPaths["scenes"],
	}, nil
}

func (fm *FileManager) SaveJSON(path string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入JSON文件失败: %w", err)
	}

	return nil
}
