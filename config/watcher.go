package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// UpdateCallback 配置更新回调
type UpdateCallback func(oldConfig, newConfig *Config)

// Watcher 配置文件监控器，文件变化且验证通过后替换当前配置并通知回调
type Watcher struct {
	configPath string
	watcher    *fsnotify.Watcher

	mu          sync.RWMutex
	current     *Config
	callbacks   []UpdateCallback
	lastModTime time.Time
	isWatching  bool

	errorChan chan error
}

// NewWatcher 创建配置监控器
func NewWatcher(configPath string, initial *Config) (*Watcher, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("解析配置路径失败: %v", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %v", err)
	}

	var lastModTime time.Time
	if info, err := os.Stat(abs); err == nil {
		lastModTime = info.ModTime()
	}

	return &Watcher{
		configPath:  abs,
		watcher:     fw,
		current:     initial,
		lastModTime: lastModTime,
		errorChan:   make(chan error, 10),
	}, nil
}

// OnUpdate 注册配置更新回调
func (w *Watcher) OnUpdate(cb UpdateCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Current 当前生效的配置
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Errors 重新加载失败的错误
func (w *Watcher) Errors() <-chan error {
	return w.errorChan
}

// Start 开始监控配置文件所在目录
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isWatching {
		return fmt.Errorf("配置监控器已经在运行")
	}
	if err := w.watcher.Add(filepath.Dir(w.configPath)); err != nil {
		return fmt.Errorf("添加监控目录失败: %v", err)
	}
	w.isWatching = true

	go w.watchLoop(ctx)
	return nil
}

// Stop 停止监控
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isWatching {
		return nil
	}
	w.isWatching = false
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				// 等待写入完成
				time.Sleep(100 * time.Millisecond)
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

// reload 重新加载配置，修改时间未变化时跳过
func (w *Watcher) reload() {
	info, err := os.Stat(w.configPath)
	if err != nil {
		w.reportError(fmt.Errorf("获取文件信息失败: %v", err))
		return
	}

	w.mu.Lock()
	if !info.ModTime().After(w.lastModTime) {
		w.mu.Unlock()
		return
	}
	w.lastModTime = info.ModTime()
	w.mu.Unlock()

	newConfig, err := LoadConfig(w.configPath)
	if err != nil {
		w.reportError(fmt.Errorf("重新加载配置失败: %w", err))
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = newConfig
	callbacks := append([]UpdateCallback(nil), w.callbacks...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(old, newConfig)
	}
}

func (w *Watcher) reportError(err error) {
	select {
	case w.errorChan <- err:
	default:
	}
}
