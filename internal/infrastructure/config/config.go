package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	Event     EventConfig
	Queue     QueueConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Security  SecurityConfig
	HubSpot   HubSpotConfig
	Zoho      ZohoConfig
	WhatsApp  WhatsAppConfig
	Meta      MetaConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings for the admin API
type JWTConfig struct {
	Secret                 string
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration
	Issuer                 string
	RefreshSecret          string
	MaxRefreshCount        int
	AdminUsername          string
	AdminPasswordHash      string // bcrypt hash of the admin password
}

// EventConfig holds outbox processor configuration
type EventConfig struct {
	ProcessorEnabled bool
	BatchSize        int
	PollInterval     time.Duration
	MaxRetries       int
	CleanupEnabled   bool
	CleanupRetention time.Duration
}

// QueueConfig holds sync job queue configuration
type QueueConfig struct {
	WorkerCount     int
	PollInterval    time.Duration
	BatchSize       int
	JobTimeout      time.Duration
	ConvertTimeout  time.Duration // longer timeout for Zoho convert calls
	MessagingBase   time.Duration // retry backoff base for messaging jobs
	CRMBase         time.Duration // retry backoff base for CRM and attribution jobs
	MessagingMaxAtt int
	CRMMaxAtt       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// SchedulerConfig holds the maintenance beat configuration
type SchedulerConfig struct {
	Enabled              bool
	DeadLetterSweepEvery time.Duration
	DeadLetterSweepLimit int
	TokenRefreshEvery    time.Duration
}

// SecurityConfig holds capture-protection settings
type SecurityConfig struct {
	CaptchaEnabled  bool
	CaptchaSecret   string
	CaptchaFailOpen bool // capture keeps working when the verifier is down
	CaptchaTimeout  time.Duration
	LeadRateLimit   int           // captures allowed per IP per window
	LeadRateWindow  time.Duration // fixed rate limit window
	PhoneDedupTTL   time.Duration // window in which repeat phones are rejected
	WebhookBodyMax  int64         // max webhook payload size in bytes
}

// HubSpotConfig holds HubSpot private-app credentials
type HubSpotConfig struct {
	AccessToken   string
	PortalID      string
	PipelineID    string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
}

// Configured reports whether the HubSpot integration can be used
func (c *HubSpotConfig) Configured() bool {
	return c.AccessToken != ""
}

// ZohoConfig holds Zoho CRM OAuth credentials
type ZohoConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccountsURL  string
	APIBaseURL   string
	Timeout      time.Duration
	TokenSkew    time.Duration // subtracted from expiry when caching tokens
}

// Configured reports whether the Zoho integration can be used
func (c *ZohoConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// WhatsAppConfig holds WhatsApp Business Cloud API credentials
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	VerifyToken   string
	AppSecret     string
	BaseURL       string
	Timeout       time.Duration
	TemplateLang  string
	BrochureURL   string
}

// Configured reports whether the WhatsApp integration can be used
func (c *WhatsAppConfig) Configured() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

// MetaConfig holds Meta Conversions API credentials
type MetaConfig struct {
	AccessToken   string
	PixelID       string
	VerifyToken   string
	AppSecret     string
	TestEventCode string
	BaseURL       string
	Timeout       time.Duration
}

// Configured reports whether the Meta integration can be used
func (c *MetaConfig) Configured() bool {
	return c.AccessToken != "" && c.PixelID != ""
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
	ExportInterval    time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with NEXUS_ prefix (e.g., NEXUS_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("NEXUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                 v.GetString("jwt.secret"),
			AccessTokenExpiration:  v.GetDuration("jwt.access_token_expiration"),
			RefreshTokenExpiration: v.GetDuration("jwt.refresh_token_expiration"),
			Issuer:                 v.GetString("jwt.issuer"),
			RefreshSecret:          v.GetString("jwt.refresh_secret"),
			MaxRefreshCount:        v.GetInt("jwt.max_refresh_count"),
			AdminUsername:          v.GetString("jwt.admin_username"),
			AdminPasswordHash:      v.GetString("jwt.admin_password_hash"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Event: EventConfig{
			ProcessorEnabled: v.GetBool("event.processor_enabled"),
			BatchSize:        v.GetInt("event.batch_size"),
			PollInterval:     v.GetDuration("event.poll_interval"),
			MaxRetries:       v.GetInt("event.max_retries"),
			CleanupEnabled:   v.GetBool("event.cleanup_enabled"),
			CleanupRetention: v.GetDuration("event.cleanup_retention"),
		},
		Queue: QueueConfig{
			WorkerCount:     v.GetInt("queue.worker_count"),
			PollInterval:    v.GetDuration("queue.poll_interval"),
			BatchSize:       v.GetInt("queue.batch_size"),
			JobTimeout:      v.GetDuration("queue.job_timeout"),
			ConvertTimeout:  v.GetDuration("queue.convert_timeout"),
			MessagingBase:   v.GetDuration("queue.messaging_backoff_base"),
			CRMBase:         v.GetDuration("queue.crm_backoff_base"),
			MessagingMaxAtt: v.GetInt("queue.messaging_max_attempts"),
			CRMMaxAtt:       v.GetInt("queue.crm_max_attempts"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:              v.GetBool("scheduler.enabled"),
			DeadLetterSweepEvery: v.GetDuration("scheduler.dead_letter_sweep_every"),
			DeadLetterSweepLimit: v.GetInt("scheduler.dead_letter_sweep_limit"),
			TokenRefreshEvery:    v.GetDuration("scheduler.token_refresh_every"),
		},
		Security: SecurityConfig{
			CaptchaEnabled:  v.GetBool("security.captcha_enabled"),
			CaptchaSecret:   v.GetString("security.captcha_secret"),
			CaptchaFailOpen: v.GetBool("security.captcha_fail_open"),
			CaptchaTimeout:  v.GetDuration("security.captcha_timeout"),
			LeadRateLimit:   v.GetInt("security.lead_rate_limit"),
			LeadRateWindow:  v.GetDuration("security.lead_rate_window"),
			PhoneDedupTTL:   v.GetDuration("security.phone_dedup_ttl"),
			WebhookBodyMax:  v.GetInt64("security.webhook_body_max"),
		},
		HubSpot: HubSpotConfig{
			AccessToken:   v.GetString("hubspot.access_token"),
			PortalID:      v.GetString("hubspot.portal_id"),
			PipelineID:    v.GetString("hubspot.pipeline_id"),
			WebhookSecret: v.GetString("hubspot.webhook_secret"),
			BaseURL:       v.GetString("hubspot.base_url"),
			Timeout:       v.GetDuration("hubspot.timeout"),
		},
		Zoho: ZohoConfig{
			ClientID:     v.GetString("zoho.client_id"),
			ClientSecret: v.GetString("zoho.client_secret"),
			RefreshToken: v.GetString("zoho.refresh_token"),
			AccountsURL:  v.GetString("zoho.accounts_url"),
			APIBaseURL:   v.GetString("zoho.api_base_url"),
			Timeout:      v.GetDuration("zoho.timeout"),
			TokenSkew:    v.GetDuration("zoho.token_skew"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   v.GetString("whatsapp.access_token"),
			PhoneNumberID: v.GetString("whatsapp.phone_number_id"),
			VerifyToken:   v.GetString("whatsapp.verify_token"),
			AppSecret:     v.GetString("whatsapp.app_secret"),
			BaseURL:       v.GetString("whatsapp.base_url"),
			Timeout:       v.GetDuration("whatsapp.timeout"),
			TemplateLang:  v.GetString("whatsapp.template_lang"),
			BrochureURL:   v.GetString("whatsapp.brochure_url"),
		},
		Meta: MetaConfig{
			AccessToken:   v.GetString("meta.access_token"),
			PixelID:       v.GetString("meta.pixel_id"),
			VerifyToken:   v.GetString("meta.verify_token"),
			AppSecret:     v.GetString("meta.app_secret"),
			TestEventCode: v.GetString("meta.test_event_code"),
			BaseURL:       v.GetString("meta.base_url"),
			Timeout:       v.GetDuration("meta.timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "nexus-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "nexus"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.JWT.RefreshTokenExpiration == 0 {
		cfg.JWT.RefreshTokenExpiration = 168 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "nexus-backend"
	}
	if cfg.JWT.MaxRefreshCount == 0 {
		cfg.JWT.MaxRefreshCount = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Event.BatchSize == 0 {
		cfg.Event.BatchSize = 100
	}
	if cfg.Event.PollInterval == 0 {
		cfg.Event.PollInterval = 5 * time.Second
	}
	if cfg.Event.MaxRetries == 0 {
		cfg.Event.MaxRetries = 5
	}
	if cfg.Event.CleanupRetention == 0 {
		cfg.Event.CleanupRetention = 168 * time.Hour
	}
	if cfg.Queue.WorkerCount == 0 {
		cfg.Queue.WorkerCount = 4
	}
	if cfg.Queue.PollInterval == 0 {
		cfg.Queue.PollInterval = 2 * time.Second
	}
	if cfg.Queue.BatchSize == 0 {
		cfg.Queue.BatchSize = 20
	}
	if cfg.Queue.JobTimeout == 0 {
		cfg.Queue.JobTimeout = 10 * time.Second
	}
	if cfg.Queue.ConvertTimeout == 0 {
		cfg.Queue.ConvertTimeout = 15 * time.Second
	}
	if cfg.Queue.MessagingBase == 0 {
		cfg.Queue.MessagingBase = 30 * time.Second
	}
	if cfg.Queue.CRMBase == 0 {
		cfg.Queue.CRMBase = 60 * time.Second
	}
	if cfg.Queue.MessagingMaxAtt == 0 {
		cfg.Queue.MessagingMaxAtt = 2
	}
	if cfg.Queue.CRMMaxAtt == 0 {
		cfg.Queue.CRMMaxAtt = 3
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 100
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.Scheduler.DeadLetterSweepEvery == 0 {
		cfg.Scheduler.DeadLetterSweepEvery = 10 * time.Minute
	}
	if cfg.Scheduler.DeadLetterSweepLimit == 0 {
		cfg.Scheduler.DeadLetterSweepLimit = 50
	}
	if cfg.Scheduler.TokenRefreshEvery == 0 {
		cfg.Scheduler.TokenRefreshEvery = 50 * time.Minute
	}
	if cfg.Security.CaptchaTimeout == 0 {
		cfg.Security.CaptchaTimeout = 5 * time.Second
	}
	if cfg.Security.LeadRateLimit == 0 {
		cfg.Security.LeadRateLimit = 10
	}
	if cfg.Security.LeadRateWindow == 0 {
		cfg.Security.LeadRateWindow = time.Hour
	}
	if cfg.Security.PhoneDedupTTL == 0 {
		cfg.Security.PhoneDedupTTL = time.Hour
	}
	if cfg.Security.WebhookBodyMax == 0 {
		cfg.Security.WebhookBodyMax = 64 * 1024
	}
	if cfg.HubSpot.BaseURL == "" {
		cfg.HubSpot.BaseURL = "https://api.hubapi.com"
	}
	if cfg.HubSpot.PipelineID == "" {
		cfg.HubSpot.PipelineID = "default"
	}
	if cfg.HubSpot.Timeout == 0 {
		cfg.HubSpot.Timeout = 10 * time.Second
	}
	if cfg.Zoho.AccountsURL == "" {
		cfg.Zoho.AccountsURL = "https://accounts.zoho.in"
	}
	if cfg.Zoho.APIBaseURL == "" {
		cfg.Zoho.APIBaseURL = "https://www.zohoapis.in"
	}
	if cfg.Zoho.Timeout == 0 {
		cfg.Zoho.Timeout = 10 * time.Second
	}
	if cfg.Zoho.TokenSkew == 0 {
		cfg.Zoho.TokenSkew = time.Minute
	}
	if cfg.WhatsApp.BaseURL == "" {
		cfg.WhatsApp.BaseURL = "https://graph.facebook.com/v19.0"
	}
	if cfg.WhatsApp.Timeout == 0 {
		cfg.WhatsApp.Timeout = 10 * time.Second
	}
	if cfg.WhatsApp.TemplateLang == "" {
		cfg.WhatsApp.TemplateLang = "en"
	}
	if cfg.Meta.BaseURL == "" {
		cfg.Meta.BaseURL = "https://graph.facebook.com/v19.0"
	}
	if cfg.Meta.Timeout == 0 {
		cfg.Meta.Timeout = 10 * time.Second
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "nexus-backend"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Security.LeadRateLimit < 0 {
		return fmt.Errorf("security.lead_rate_limit cannot be negative")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.HubSpot.Configured() && c.HubSpot.WebhookSecret == "" {
			return fmt.Errorf("hubspot.webhook_secret is required in production when hubspot is configured")
		}
		if c.WhatsApp.Configured() && c.WhatsApp.AppSecret == "" {
			return fmt.Errorf("whatsapp.app_secret is required in production when whatsapp is configured")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
