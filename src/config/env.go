package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// 环境变量覆盖，密码类配置不必写进 config.json
const (
	EnvInputPath     = "DELIVERY_INPUT_PATH"
	EnvEmailPassword = "DELIVERY_EMAIL_PASSWORD"
	EnvSMTPPassword  = "DELIVERY_SMTP_PASSWORD"
	EnvPushWebhook   = "DELIVERY_PUSH_WEBHOOK"
	EnvPushSecret    = "DELIVERY_PUSH_SECRET"
)

// ApplyEnv 读取 .env 文件(不存在时跳过)，再用环境变量覆盖配置。
// 已存在的环境变量不会被 .env 覆盖。
func ApplyEnv(cfg *Config, envFiles ...string) error {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	override(&cfg.InputPath, EnvInputPath)
	override(&cfg.Email.Password, EnvEmailPassword)
	override(&cfg.SendEmail.Password, EnvSMTPPassword)
	override(&cfg.Push.Webhook, EnvPushWebhook)
	override(&cfg.Push.Secret, EnvPushSecret)
	return nil
}

func override(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}
