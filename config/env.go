package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Options 引擎宿主的运行时选项（与注册期 Config 区分）
//
// 从环境变量解析，供示例/宿主进程装配 logger、日志与外联通知器。
type Options struct {
	// LogLevel 日志级别：debug/info/warn/error
	LogLevel string `env:"GLUON_LOG_LEVEL" envDefault:"info"`

	// LogPrefix 日志前缀
	LogPrefix string `env:"GLUON_LOG_PREFIX" envDefault:"gluon"`

	// HTTPAddr HTTP 桥接监听地址
	HTTPAddr string `env:"GLUON_HTTP_ADDR" envDefault:":8080"`

	// JournalPath sqlite 事件日志文件路径，空表示仅用内存日志
	JournalPath string `env:"GLUON_JOURNAL_PATH"`

	// NATSURL 非空则启用 NATS 外联通知
	NATSURL string `env:"GLUON_NATS_URL"`

	// RedisAddr 非空则启用 Redis Streams 外联通知
	RedisAddr string `env:"GLUON_REDIS_ADDR"`
}

// ParseOptions 从环境变量解析运行时选项
func ParseOptions() (Options, error) {
	var opts Options
	if err := env.Parse(&opts); err != nil {
		return Options{}, fmt.Errorf("parse env options: %w", err)
	}
	return opts, nil
}
