// Package logger 全局分级日志（控制台 + DEBUG 级别下的按日文件日志）
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel 日志级别
type LogLevel int

const (
	DEBUG LogLevel = iota // 调试信息（最详细）
	INFO                  // 一般信息
	WARN                  // 警告信息
	ERROR                 // 错误信息
	FATAL                 // 致命错误（程序无法继续）
)

var (
	globalLevel = INFO
	levelMu     sync.RWMutex

	console = log.New(os.Stderr, "", log.LstdFlags)

	globalLocation = time.Local
	locationMu     sync.RWMutex

	logDir = "logs"

	appFile = &dailyFile{pattern: "app-smabacktest-%s.log"}
	webFile = &dailyFile{pattern: "web-gin-%s.log"}
)

// String 返回日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel 解析日志级别字符串，无法识别时返回 INFO
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// SetLevel 设置全局日志级别，DEBUG 级别会同时写入文件
func SetLevel(level LogLevel) {
	levelMu.Lock()
	globalLevel = level
	levelMu.Unlock()

	if level == DEBUG {
		if err := appFile.open(); err != nil {
			console.Printf("[WARN] %v，将只输出到控制台", err)
		}
	} else {
		appFile.close()
	}
}

// GetLevel 获取全局日志级别
func GetLevel() LogLevel {
	levelMu.RLock()
	defer levelMu.RUnlock()
	return globalLevel
}

// SetOutput 设置控制台输出目标
func SetOutput(w io.Writer) {
	console.SetOutput(w)
}

// SetLogDir 设置日志文件目录（需在 SetLevel 之前调用）
func SetLogDir(dir string) {
	appFile.mu.Lock()
	webFile.mu.Lock()
	logDir = dir
	webFile.mu.Unlock()
	appFile.mu.Unlock()
}

// SetLocation 设置日志时区
func SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	locationMu.Lock()
	defer locationMu.Unlock()
	globalLocation = loc
}

func now() time.Time {
	locationMu.RLock()
	defer locationMu.RUnlock()
	return time.Now().In(globalLocation)
}

// dailyFile 按日期轮转的日志文件
type dailyFile struct {
	mu      sync.Mutex
	pattern string
	file    *os.File
	logger  *log.Logger
	date    string
}

func (d *dailyFile) open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rotateLocked(now().Format("2006-01-02"))
}

// rotateLocked 日期变化时切换文件（调用前必须持有 mu）
func (d *dailyFile) rotateLocked(today string) error {
	if d.logger != nil && d.date == today {
		return nil
	}
	if d.file != nil {
		d.file.Close()
		d.file, d.logger, d.date = nil, nil, ""
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("创建日志文件夹失败: %v", err)
	}
	name := filepath.Join(logDir, fmt.Sprintf(d.pattern, today))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %v", err)
	}
	d.file = f
	d.date = today
	d.logger = log.New(f, "", 0)
	return nil
}

func (d *dailyFile) write(message string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.logger == nil {
		return
	}
	t := now()
	if err := d.rotateLocked(t.Format("2006-01-02")); err != nil {
		return
	}
	d.logger.Printf("%s %s", t.Format("2006/01/02 15:04:05"), message)
}

func (d *dailyFile) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file != nil {
		d.file.Close()
	}
	d.file, d.logger, d.date = nil, nil, ""
}

// InitWebLogger 启用 Web 访问日志文件
func InitWebLogger() error {
	return webFile.open()
}

// WriteWebLog 写入 Web 访问日志（供 Gin 中间件使用）
func WriteWebLog(message string) {
	webFile.write(message)
}

// Close 关闭所有日志文件（程序退出时调用）
func Close() {
	appFile.close()
	webFile.close()
}

func logf(level LogLevel, format string, args ...interface{}) {
	current := GetLevel()
	if level < current {
		return
	}
	message := fmt.Sprintf("[%s] "+format, append([]interface{}{level.String()}, args...)...)
	console.Print(message)

	if current == DEBUG {
		appFile.write(message)
	}
}

// Debug 输出调试日志
func Debug(format string, args ...interface{}) {
	logf(DEBUG, format, args...)
}

// Info 输出一般信息日志
func Info(format string, args ...interface{}) {
	logf(INFO, format, args...)
}

// Warn 输出警告日志
func Warn(format string, args ...interface{}) {
	logf(WARN, format, args...)
}

// Error 输出错误日志
func Error(format string, args ...interface{}) {
	logf(ERROR, format, args...)
}

// Fatal 输出致命错误日志并退出程序
func Fatal(format string, args ...interface{}) {
	logf(FATAL, format, args...)
	Close()
	os.Exit(1)
}

// Fatalf 输出致命错误日志并退出程序（兼容标准库）
func Fatalf(format string, args ...interface{}) {
	Fatal(format, args...)
}
