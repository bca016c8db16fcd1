package conf

import (
	"fmt"
	"time"

	"xinyuan_tech/checkout-service/internal/constants"
)

type Bootstrap struct {
	Server   *Server   `yaml:"server" json:"server"`
	Data     *Data     `yaml:"data" json:"data"`
	Client   *Client   `yaml:"client" json:"client"`
	Checkout *Checkout `yaml:"checkout" json:"checkout"`
	Cron     *Cron     `yaml:"cron" json:"cron"`
	Log      *Log      `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
}

type Data struct {
	Database struct {
		Driver          string `yaml:"driver" json:"driver"`
		Source          string `yaml:"source" json:"source"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	} `yaml:"database" json:"database"`
	Redis struct {
		Addr         string `yaml:"addr" json:"addr"`
		Password     string `yaml:"password" json:"password"`
		Db           int32  `yaml:"db" json:"db"`
		ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
		DialTimeout  string `yaml:"dial_timeout" json:"dial_timeout"`
	} `yaml:"redis" json:"redis"`
	Kafka struct {
		Brokers        string `yaml:"brokers" json:"brokers"`
		Topic          string `yaml:"topic" json:"topic"`
		QueueSize      int    `yaml:"queue_size" json:"queue_size"`
		PublishTimeout string `yaml:"publish_timeout" json:"publish_timeout"`
	} `yaml:"kafka" json:"kafka"`
}

type Client struct {
	PayPal *PayPal `yaml:"paypal" json:"paypal"`
}

// PayPal 结账服务商配置
type PayPal struct {
	BaseURL             string `yaml:"base_url" json:"base_url"`
	ClientID            string `yaml:"client_id" json:"client_id"`
	ClientSecret        string `yaml:"client_secret" json:"client_secret"`
	Timeout             string `yaml:"timeout" json:"timeout"`
	Intent              string `yaml:"intent" json:"intent"`
	ReturnURL           string `yaml:"return_url" json:"return_url"`
	BrandName           string `yaml:"brand_name" json:"brand_name"`
	Locale              string `yaml:"locale" json:"locale"`
	LandingPage         string `yaml:"landing_page" json:"landing_page"`
	ShippingPreferences string `yaml:"shipping_preferences" json:"shipping_preferences"`
	UserAction          string `yaml:"user_action" json:"user_action"`
}

// Checkout 支付状态机参数
type Checkout struct {
	PaymentServiceID  uint64 `yaml:"payment_service_id" json:"payment_service_id"`
	DefaultCurrency   string `yaml:"default_currency" json:"default_currency"`
	ApprovalExpiry    string `yaml:"approval_expiry" json:"approval_expiry"`
	CaptureDelayDays  int    `yaml:"capture_delay_days" json:"capture_delay_days"`
	CompleteDelayDays int    `yaml:"complete_delay_days" json:"complete_delay_days"`
	LockExpiry        string `yaml:"lock_expiry" json:"lock_expiry"`
	LockTries         int    `yaml:"lock_tries" json:"lock_tries"`
}

type Cron struct {
	DailyCapture string `yaml:"daily_capture" json:"daily_capture"`
	SweepTimeout string `yaml:"sweep_timeout" json:"sweep_timeout"`
}

type Log struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Validate validates the configuration
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	return b.ValidateWorker()
}

// ValidateWorker validates the sections needed by the cron and CLI binaries,
// which run without an HTTP server.
func (b *Bootstrap) ValidateWorker() error {
	if b.Data == nil {
		return fmt.Errorf("data configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	switch b.Data.Database.Driver {
	case "", "mysql", "postgres":
	default:
		return fmt.Errorf("data.database.driver %q is not supported", b.Data.Database.Driver)
	}
	if b.Client == nil || b.Client.PayPal == nil {
		return fmt.Errorf("client.paypal configuration is required")
	}
	if b.Client.PayPal.BaseURL == "" {
		return fmt.Errorf("client.paypal.base_url is required")
	}
	if b.Client.PayPal.ClientID == "" || b.Client.PayPal.ClientSecret == "" {
		return fmt.Errorf("client.paypal credentials are required")
	}
	if b.Client.PayPal.ReturnURL == "" {
		return fmt.Errorf("client.paypal.return_url is required")
	}
	for name, v := range map[string]string{
		"server.http.timeout":             b.httpTimeout(),
		"data.database.conn_max_lifetime": b.Data.Database.ConnMaxLifetime,
		"data.kafka.publish_timeout":      b.Data.Kafka.PublishTimeout,
		"client.paypal.timeout":           b.Client.PayPal.Timeout,
		"checkout.approval_expiry":        b.GetCheckout().ApprovalExpiry,
		"checkout.lock_expiry":            b.GetCheckout().LockExpiry,
	} {
		if _, err := ParseDuration(v, 0); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	// 锁在授权/请款期间持有，需覆盖 token 获取与业务请求两次超时
	lockExpiry := MustDuration(b.GetCheckout().LockExpiry, constants.DefaultLockExpiration)
	providerTimeout := MustDuration(b.Client.PayPal.Timeout, constants.DefaultPayPalTimeout)
	if required := 2*providerTimeout + constants.LockExpiryMargin; lockExpiry < required {
		return fmt.Errorf("checkout.lock_expiry %s must be at least %s (2 x client.paypal.timeout + %s)", lockExpiry, required, constants.LockExpiryMargin)
	}
	if b.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	return nil
}

func (b *Bootstrap) httpTimeout() string {
	if b.Server == nil {
		return ""
	}
	return b.Server.Http.Timeout
}

// GetCheckout 返回状态机参数，未配置时使用默认值
func (b *Bootstrap) GetCheckout() *Checkout {
	c := &Checkout{}
	if b != nil && b.Checkout != nil {
		*c = *b.Checkout
	}
	if c.PaymentServiceID == 0 {
		c.PaymentServiceID = 3
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = "USD"
	}
	if c.ApprovalExpiry == "" {
		c.ApprovalExpiry = "3h"
	}
	if c.CaptureDelayDays <= 0 {
		c.CaptureDelayDays = 2
	}
	if c.CompleteDelayDays <= 0 {
		c.CompleteDelayDays = 7
	}
	if c.LockExpiry == "" {
		c.LockExpiry = constants.DefaultLockExpiration.String()
	}
	if c.LockTries <= 0 {
		c.LockTries = 1
	}
	return c
}

// GetPayPal 返回 PayPal 配置，未配置时返回空结构
func (b *Bootstrap) GetPayPal() *PayPal {
	if b == nil || b.Client == nil || b.Client.PayPal == nil {
		return &PayPal{}
	}
	return b.Client.PayPal
}

// ParseDuration parses s, falling back to def when s is empty.
func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// MustDuration is ParseDuration for values already checked by Validate.
func MustDuration(s string, def time.Duration) time.Duration {
	d, err := ParseDuration(s, def)
	if err != nil {
		return def
	}
	return d
}
