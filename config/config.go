package config

import (
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// DBConfig Database config
type DBConfig struct {
	Type     string `yaml:"type"` // sqlite | postgres
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Passwd   string `yaml:"passwd"`
	MaxConn  int    `yaml:"max_conn"`
	IdleConn int    `yaml:"idle_conn"`
	Debug    bool   `yaml:"debug"`
}

// SysConfig System config
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig admin and webhook http server config
type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Secret        string `yaml:"secret"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"` // bcrypt hash
	TokenTTL      int    `yaml:"token_ttl"`      // hours
}

// LogConfig logger config
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// WhatsAppConfig session manager tuning
type WhatsAppConfig struct {
	ReconnectDelay int `yaml:"reconnect_delay"` // seconds
	SendTimeout    int `yaml:"send_timeout"`    // seconds
	InboundBuffer  int `yaml:"inbound_buffer"`
	Workers        int `yaml:"workers"`
}

// MessagesConfig fixed replies and default templates
type MessagesConfig struct {
	DefaultTemplate string      `yaml:"default_template"`
	OrderTemplate   string      `yaml:"order_template"`
	NotRegistered   string      `yaml:"not_registered"`
	Inactive        string      `yaml:"inactive"`
	OrderLabels     OrderLabels `yaml:"order_labels"`
}

// OrderLabels headings used in order summaries
type OrderLabels struct {
	OrderID  string `yaml:"order_id"`
	Customer string `yaml:"customer"`
	Items    string `yaml:"items"`
	Total    string `yaml:"total"`
}

type WebhookConfig struct {
	RequireAPIKey bool `yaml:"require_api_key"`
}

type JobsConfig struct {
	ExpirySweep    string `yaml:"expiry_sweep"`
	OprLogKeepDays int    `yaml:"opr_log_keep_days"`
}

type AppConfig struct {
	System   SysConfig      `yaml:"system"`
	Web      WebConfig      `yaml:"web"`
	Database DBConfig       `yaml:"database"`
	Logger   LogConfig      `yaml:"logger"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Messages MessagesConfig `yaml:"messages"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

func (c *AppConfig) GetLogDir() string {
	return path.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return path.Join(c.System.Workdir, "data")
}

func (c *AppConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.WhatsApp.ReconnectDelay) * time.Second
}

func (c *AppConfig) SendTimeout() time.Duration {
	return time.Duration(c.WhatsApp.SendTimeout) * time.Second
}

func (c *AppConfig) TokenTTL() time.Duration {
	if c.Web.TokenTTL <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(c.Web.TokenTTL) * time.Hour
}

// IsProduction hides internal error details from api callers
func (c *AppConfig) IsProduction() bool {
	return c.Logger.Mode == "production"
}

// DefaultAppConfig returns the built-in defaults, Arabic copy included.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "wanotify",
			Location: "Asia/Riyadh",
			Workdir:  "/var/wanotify",
			Debug:    false,
		},
		Web: WebConfig{
			Host:      "0.0.0.0",
			Port:      3000,
			Secret:    "9b6de5cc-0731-4bf1-wanotify-0a4f0b1b1a55",
			AdminUser: "admin",
			// empty means the default password is hashed at startup
			AdminPassword: "",
			TokenTTL:      12,
		},
		Database: DBConfig{
			Type:     "sqlite",
			Name:     "wanotify.db",
			MaxConn:  20,
			IdleConn: 5,
		},
		Logger: LogConfig{
			Mode:       "development",
			FileEnable: false,
			Filename:   "/var/wanotify/logs/wanotify.log",
		},
		WhatsApp: WhatsAppConfig{
			ReconnectDelay: 2,
			SendTimeout:    20,
			InboundBuffer:  256,
			Workers:        16,
		},
		Messages: MessagesConfig{
			DefaultTemplate: "مرحبًا {name}! اشتراكك فعّال حتى {endDate} 🎉",
			OrderTemplate:   "مرحبًا {name}! تم استلام طلبك. التفاصيل:\n{order}",
			NotRegistered:   "رقمك غير مسجل في الخدمة",
			Inactive:        "اشتراكك منتهي",
			OrderLabels: OrderLabels{
				OrderID:  "رقم الطلب",
				Customer: "العميل",
				Items:    "المنتجات",
				Total:    "الإجمالي",
			},
		},
		Webhook: WebhookConfig{RequireAPIKey: true},
		Jobs: JobsConfig{
			ExpirySweep:    "@hourly",
			OprLogKeepDays: 365,
		},
	}
}

// LoadConfig reads the yaml file over the defaults, then applies env overrides.
// An empty cfile skips the file.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := DefaultAppConfig()
	if cfile != "" {
		data, err := os.ReadFile(cfile)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", cfile)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", cfile)
		}
	}
	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch strings.ToLower(c.Database.Type) {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return errors.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.WhatsApp.ReconnectDelay <= 0 {
		return errors.New("whatsapp.reconnect_delay must be positive")
	}
	if c.WhatsApp.SendTimeout <= 0 {
		return errors.New("whatsapp.send_timeout must be positive")
	}
	if c.WhatsApp.Workers <= 0 {
		c.WhatsApp.Workers = 1
	}
	return nil
}

func setEnvValue(name string, val *string) {
	if v := os.Getenv(name); v != "" {
		*val = v
	}
}

func setEnvBoolValue(name string, val *bool) {
	if v := os.Getenv(name); v != "" {
		*val = cast.ToBool(v)
	}
}

func setEnvIntValue(name string, val *int) {
	if v := os.Getenv(name); v != "" {
		if i, err := cast.ToIntE(v); err == nil {
			*val = i
		}
	}
}

func applyEnv(cfg *AppConfig) {
	setEnvValue("WANOTIFY_SYSTEM_WORKER_DIR", &cfg.System.Workdir)
	setEnvValue("WANOTIFY_SYSTEM_LOCATION", &cfg.System.Location)
	setEnvBoolValue("WANOTIFY_SYSTEM_DEBUG", &cfg.System.Debug)

	setEnvValue("WANOTIFY_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("WANOTIFY_WEB_PORT", &cfg.Web.Port)
	setEnvValue("WANOTIFY_WEB_SECRET", &cfg.Web.Secret)
	setEnvValue("WANOTIFY_ADMIN_USER", &cfg.Web.AdminUser)
	setEnvValue("WANOTIFY_ADMIN_PASSWORD", &cfg.Web.AdminPassword)

	setEnvValue("WANOTIFY_DB_TYPE", &cfg.Database.Type)
	setEnvValue("WANOTIFY_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("WANOTIFY_DB_PORT", &cfg.Database.Port)
	setEnvValue("WANOTIFY_DB_NAME", &cfg.Database.Name)
	setEnvValue("WANOTIFY_DB_USER", &cfg.Database.User)
	setEnvValue("WANOTIFY_DB_PWD", &cfg.Database.Passwd)
	setEnvBoolValue("WANOTIFY_DB_DEBUG", &cfg.Database.Debug)

	setEnvValue("WANOTIFY_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvBoolValue("WANOTIFY_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)

	setEnvIntValue("WANOTIFY_WA_RECONNECT_DELAY", &cfg.WhatsApp.ReconnectDelay)
	setEnvIntValue("WANOTIFY_WA_SEND_TIMEOUT", &cfg.WhatsApp.SendTimeout)
	setEnvIntValue("WANOTIFY_WA_WORKERS", &cfg.WhatsApp.Workers)

	setEnvBoolValue("WANOTIFY_WEBHOOK_REQUIRE_API_KEY", &cfg.Webhook.RequireAPIKey)
}
