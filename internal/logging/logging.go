package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New release 模式使用 JSON 生产配置，其余为开发模式的控制台输出
func New(release bool) (*zap.Logger, error) {
	if release {
		return zap.NewProduction()
	}
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stderr"}
	config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.DisableStacktrace = true
	return config.Build()
}
