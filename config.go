// Configuration and logging for reactivex
// 配置选项与日志
package reactivex

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// Config 配置结构
type Config struct {
	Scheduler  Scheduler
	BufferSize int
	Window     time.Duration
	Logger     *zap.Logger
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		BufferSize: -1,
		Window:     -1,
	}
}

// newConfig 应用所有选项
func newConfig(options ...Option) *Config {
	config := DefaultConfig()
	for _, opt := range options {
		if opt != nil {
			opt.Apply(config)
		}
	}
	return config
}

// schedulerOr 返回配置的调度器，未配置时使用fallback
func (c *Config) schedulerOr(fallback Scheduler) Scheduler {
	if c.Scheduler != nil {
		return c.Scheduler
	}
	return fallback
}

// loggerOr 返回配置的日志器，未配置时使用包级日志器
func (c *Config) loggerOr() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return Logger()
}

// optionFunc 函数式选项
type optionFunc func(config *Config)

// Apply 应用选项
func (f optionFunc) Apply(config *Config) {
	f(config)
}

// WithScheduler 创建使用指定调度器的选项
func WithScheduler(scheduler Scheduler) Option {
	return optionFunc(func(config *Config) {
		config.Scheduler = scheduler
	})
}

// WithBufferSize 设置缓冲区大小（ReplaySubject等）
func WithBufferSize(size int) Option {
	return optionFunc(func(config *Config) {
		config.BufferSize = size
	})
}

// WithWindow 设置时间窗口（ReplaySubject等）
func WithWindow(window time.Duration) Option {
	return optionFunc(func(config *Config) {
		config.Window = window
	})
}

// WithLogger 设置日志器
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(config *Config) {
		config.Logger = logger
	})
}

// ============================================================================
// 日志
// ============================================================================

var packageLogger atomic.Pointer[zap.Logger]

func init() {
	packageLogger.Store(zap.NewNop())
}

// SetLogger 设置包级日志器，nil恢复为静默日志器
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	packageLogger.Store(logger)
}

// Logger 获取包级日志器
func Logger() *zap.Logger {
	return packageLogger.Load()
}
