// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor 监控输入文件，文件被写入或替换后回调
type FileMonitor struct {
	watchDir string
	target   string // 只关心这个文件名，为空则目录下全部文件
	watcher  *fsnotify.Watcher
	lastFile string
	lastMod  time.Time
	mu       sync.Mutex
}

// NewFileMonitor 监控文件所在目录，编辑器常用 rename 方式保存
func NewFileMonitor(filePath string) (*FileMonitor, error) {
	dir, target := filepath.Dir(filePath), filepath.Base(filePath)
	if info, err := os.Stat(filePath); err == nil && info.IsDir() {
		dir, target = filePath, ""
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	m := &FileMonitor{
		watchDir: dir,
		target:   target,
		watcher:  watcher,
	}
	if target != "" {
		if info, err := os.Stat(filePath); err == nil {
			m.lastMod = info.ModTime()
			m.lastFile = filepath.Join(dir, target)
		}
	}
	return m, nil
}

// Watch 阻塞直到 ctx 结束或 watcher 出错，handler 串行调用
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if m.target != "" && filepath.Base(event.Name) != m.target {
				continue
			}
			if m.changed(event.Name) {
				handler(event.Name)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) changed(name string) bool {
	name = filepath.Clean(name)
	info, err := os.Stat(name)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if name == m.lastFile && !info.ModTime().After(m.lastMod) {
		return false
	}
	m.lastMod = info.ModTime()
	m.lastFile = name
	return true
}

func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
