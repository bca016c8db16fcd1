package conf

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// 凭据可通过环境变量覆盖，避免写入配置文件
const (
	EnvPayPalClientID     = "PAYPAL_CLIENT_ID"
	EnvPayPalClientSecret = "PAYPAL_CLIENT_SECRET"
	EnvDatabaseSource     = "CHECKOUT_DATABASE_SOURCE"
)

// Load 加载配置文件（checkoutctl 使用，不依赖 kratos config）
func Load(path string) (*Bootstrap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var c Bootstrap
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	c.ApplyEnv()

	return &c, nil
}

// ApplyEnv 使用环境变量覆盖敏感配置
func (b *Bootstrap) ApplyEnv() {
	if v := os.Getenv(EnvDatabaseSource); v != "" {
		if b.Data == nil {
			b.Data = &Data{}
		}
		b.Data.Database.Source = v
	}
	id, secret := os.Getenv(EnvPayPalClientID), os.Getenv(EnvPayPalClientSecret)
	if id == "" && secret == "" {
		return
	}
	if b.Client == nil {
		b.Client = &Client{}
	}
	if b.Client.PayPal == nil {
		b.Client.PayPal = &PayPal{}
	}
	if id != "" {
		b.Client.PayPal.ClientID = id
	}
	if secret != "" {
		b.Client.PayPal.ClientSecret = secret
	}
}
