/*角色素材管理*/
package characters

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ajaybhaskarbaddula/YT-video-generator/pkg/script"
	"go.uber.org/zap"
)

// 支持的角色图片扩展名
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

var validName = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ErrInvalidName 角色名不合法
var ErrInvalidName = errors.New("invalid character name")

// ErrUnsupportedImage 不支持的图片格式
var ErrUnsupportedImage = errors.New("unsupported image type")

// Assets 角色名(小写) -> 图片路径
type Assets map[string]string

// Names 排序后的角色名
func (a Assets) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AssetStatus 说话人素材状态
type AssetStatus string

const (
	StatusHasAsset     AssetStatus = "has-asset"
	StatusMissingAsset AssetStatus = "missing-asset"
	StatusExempt       AssetStatus = "exempt" // 旁白不需要素材
)

// SpeakerStatus 单个说话人的检查结果
type SpeakerStatus struct {
	Speaker string      `json:"speaker"`
	Status  AssetStatus `json:"status"`
	Path    string      `json:"path,omitempty"`
}

// Scan 扫描目录下的角色图片，目录不存在时自动创建
func Scan(dir string) (Assets, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建角色目录失败: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取角色目录失败: %w", err)
	}

	assets := make(Assets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !imageExts[ext] {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		assets[name] = filepath.Join(dir, entry.Name())
	}
	return assets, nil
}

// Classify 根据素材集合判断每个说话人是否有对应图片
func Classify(assets Assets, speakers []string) []SpeakerStatus {
	result := make([]SpeakerStatus, 0, len(speakers))
	for _, speaker := range speakers {
		s := SpeakerStatus{Speaker: speaker}
		switch path, ok := assets[speaker]; {
		case speaker == script.Narrator:
			s.Status = StatusExempt
		case ok:
			s.Status = StatusHasAsset
			s.Path = path
		default:
			s.Status = StatusMissingAsset
		}
		result = append(result, s)
	}
	return result
}

// Missing 返回缺少图片的说话人
func Missing(statuses []SpeakerStatus) []string {
	var missing []string
	for _, s := range statuses {
		if s.Status == StatusMissingAsset {
			missing = append(missing, s.Speaker)
		}
	}
	return missing
}

// Registry 角色目录，保存最近一次扫描结果
type Registry struct {
	dir    string
	logger *zap.Logger

	mu     sync.RWMutex
	assets Assets
}

// NewRegistry 创建角色注册表并立即扫描一次
func NewRegistry(dir string, logger *zap.Logger) (*Registry, error) {
	r := &Registry{dir: dir, logger: logger}
	if _, err := r.Rescan(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir 角色目录
func (r *Registry) Dir() string {
	return r.dir
}

// Rescan 重新扫描目录
func (r *Registry) Rescan() (Assets, error) {
	assets, err := Scan(r.dir)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.assets = assets
	r.mu.Unlock()

	r.logger.Debug("角色目录已扫描", zap.String("dir", r.dir), zap.Int("count", len(assets)))
	return assets, nil
}

// Assets 返回当前素材集合的副本
func (r *Registry) Assets() Assets {
	r.mu.RLock()
	defer r.mu.RUnlock()

	copied := make(Assets, len(r.assets))
	for k, v := range r.assets {
		copied[k] = v
	}
	return copied
}

// Lookup 查找角色图片
func (r *Registry) Lookup(speaker string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	path, ok := r.assets[speaker]
	return path, ok
}

// Classify 使用当前素材集合分类
func (r *Registry) Classify(speakers []string) []SpeakerStatus {
	return Classify(r.Assets(), speakers)
}

// Save 保存上传的角色图片，文件名为 <小写角色名>.<扩展名>
func (r *Registry) Save(name, ext string, src io.Reader) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !validName.MatchString(name) || name == script.Narrator {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if !imageExts[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, ext)
	}

	// 同名不同扩展名的旧文件会导致扫描结果不确定，先移除
	if old, ok := r.Lookup(name); ok {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("删除旧角色图片失败: %w", err)
		}
	}

	target := filepath.Join(r.dir, name+ext)
	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("创建角色图片失败: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return "", fmt.Errorf("写入角色图片失败: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("写入角色图片失败: %w", err)
	}

	r.logger.Info("角色图片已保存", zap.String("name", name), zap.String("file", target))
	if _, err := r.Rescan(); err != nil {
		return "", err
	}
	return target, nil
}

// Delete 删除角色图片，不存在时返回 os.ErrNotExist
func (r *Registry) Delete(name string) error {
	name = strings.ToLower(name)
	path, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("角色 %s: %w", name, os.ErrNotExist)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("删除角色图片失败: %w", err)
	}

	r.logger.Info("角色图片已删除", zap.String("name", name))
	_, err := r.Rescan()
	return err
}
