package characters

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch 监听角色目录，新增/删除/重命名文件时重新扫描并回调。阻塞直到 ctx 结束。
func (r *Registry) Watch(ctx context.Context, onChange func(Assets)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建目录监听失败: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("监听角色目录失败: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
				continue
			}
			assets, err := r.Rescan()
			if err != nil {
				r.logger.Warn("重新扫描角色目录失败", zap.Error(err))
				continue
			}
			if onChange != nil {
				onChange(assets)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("角色目录监听错误", zap.Error(err))
		}
	}
}
