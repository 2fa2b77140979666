package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// MQTTClientID 显式配置优先，其次 INSTANCE_ID；都为空时返回空串（由绑定生成随机 id）
func MQTTClientID(configured string) string {
	if configured != "" {
		return configured
	}
	return os.Getenv("INSTANCE_ID")
}

// GenerateInstanceID 优先使用环境变量 INSTANCE_ID，否则为 <app>-<hostname>-<uuid8>
func GenerateInstanceID(appName string) string {
	if id := os.Getenv("INSTANCE_ID"); id != "" {
		return id
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%s-%s", appName, hostname, uuid.New().String()[:8])
}
