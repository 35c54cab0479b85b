// Package config loads and validates this service's environment-variable
// configuration: upstream connection details, persistence, the chat bot,
// the permission spreadsheet, and the scheduler's timezone.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig reads environment variables under an optional prefix, with
// typed Get/MustGet accessors.
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates an environment configuration loader scoped to prefix.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		return value
	}
	return defaultValue
}

func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return value
}

func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(ec.buildKey(key))
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Validator accumulates configuration validation failures so startup can
// report every problem at once instead of failing on the first one found.
type Validator struct {
	errors []string
}

func NewValidator() *Validator {
	return &Validator{errors: make([]string, 0)}
}

func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

func (v *Validator) RequireURL(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s must be a valid absolute URL", field))
	}
}

func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

func (v *Validator) IsValid() bool { return len(v.errors) == 0 }

func (v *Validator) Errors() []string { return v.errors }

func (v *Validator) ErrorString() string {
	return strings.Join(v.errors, "; ")
}

func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", v.ErrorString())
	}
	return nil
}

// POSConfig configures the on-prem POS/ERP client.
type POSConfig struct {
	BaseURL        string
	Login          string
	Password       string
	TokenRefreshAt time.Duration
}

func loadPOSConfig(env *EnvConfig) POSConfig {
	return POSConfig{
		BaseURL:        env.GetString("POS_BASE_URL", ""),
		Login:          env.GetString("POS_LOGIN", ""),
		Password:       env.GetString("POS_PASSWORD", ""),
		TokenRefreshAt: env.GetDuration("POS_TOKEN_REFRESH_MARGIN", 60*time.Second),
	}
}

// FinanceConfig configures the cloud finance system client.
type FinanceConfig struct {
	BaseURL        string
	BearerToken    string
	MaxConcurrency int
}

func loadFinanceConfig(env *EnvConfig) FinanceConfig {
	return FinanceConfig{
		BaseURL:        env.GetString("FINANCE_BASE_URL", ""),
		BearerToken:    env.GetString("FINANCE_TOKEN", ""),
		MaxConcurrency: env.GetInt("FINANCE_MAX_CONCURRENCY", 4),
	}
}

// CloudConfig configures the cloud stoplist/delivery webhook integration.
type CloudConfig struct {
	BaseURL         string
	WebhookSecret   string
	TerminalGroupID string
}

func loadCloudConfig(env *EnvConfig) CloudConfig {
	return CloudConfig{
		BaseURL:         env.GetString("CLOUD_BASE_URL", ""),
		WebhookSecret:   env.GetString("CLOUD_WEBHOOK_SECRET", ""),
		TerminalGroupID: env.GetString("CLOUD_TERMINAL_GROUP_ID", ""),
	}
}

// DatabaseConfig configures the Postgres connection pool.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

func loadDatabaseConfig(env *EnvConfig) DatabaseConfig {
	return DatabaseConfig{
		DSN:             env.GetString("DATABASE_URL", ""),
		MaxConns:        int32(env.GetInt("DATABASE_MAX_CONNS", 10)),
		MinConns:        int32(env.GetInt("DATABASE_MIN_CONNS", 5)),
		MaxConnIdleTime: env.GetDuration("DATABASE_MAX_CONN_IDLE", 300*time.Second),
	}
}

// CacheConfig configures the optional shared Redis cache/lock backend. When
// URL is empty, callers fall back to in-process caches and locks.
type CacheConfig struct {
	URL string
}

func loadCacheConfig(env *EnvConfig) CacheConfig {
	return CacheConfig{URL: env.GetString("CACHE_URL", "")}
}

// TelegramConfig configures the chat bot transport.
type TelegramConfig struct {
	BotToken string
}

func loadTelegramConfig(env *EnvConfig) TelegramConfig {
	return TelegramConfig{BotToken: env.GetString("TELEGRAM_BOT_TOKEN", "")}
}

// SpreadsheetConfig configures the permission-matrix source of truth.
type SpreadsheetConfig struct {
	SpreadsheetID         string
	CredentialsJSON       string
	CacheTTL              time.Duration
	UseLegacyAdminTables  bool
}

func loadSpreadsheetConfig(env *EnvConfig) SpreadsheetConfig {
	return SpreadsheetConfig{
		SpreadsheetID:        env.GetString("PERMISSIONS_SPREADSHEET_ID", ""),
		CredentialsJSON:      env.GetString("PERMISSIONS_CREDENTIALS_JSON", ""),
		CacheTTL:             env.GetDuration("PERMISSIONS_CACHE_TTL", 5*time.Minute),
		UseLegacyAdminTables: env.GetBool("PERMISSIONS_USE_LEGACY_TABLES", false),
	}
}

// SchedulerConfig configures the timezone cron jobs are evaluated in.
// MisfireGrace is loaded from the environment but not read: scheduler.New
// uses its own fixed one-hour grace window.
type SchedulerConfig struct {
	Timezone     string
	MisfireGrace time.Duration
}

func loadSchedulerConfig(env *EnvConfig) SchedulerConfig {
	return SchedulerConfig{
		Timezone:     env.GetString("SCHEDULER_TIMEZONE", "Europe/Kaliningrad"),
		MisfireGrace: env.GetDuration("SCHEDULER_MISFIRE_GRACE", time.Hour),
	}
}

// CooldownConfig holds a default per-user action cooldown for the chat bot.
// Default is loaded from the environment but not read: the bot middleware
// is wired with package bot's own cooldown durations.
type CooldownConfig struct {
	Default time.Duration
}

func loadCooldownConfig(env *EnvConfig) CooldownConfig {
	return CooldownConfig{Default: env.GetDuration("COOLDOWN_DEFAULT", 3*time.Second)}
}

// TransferConfig parameterises the nightly negative-consumable transfer
// job (spec.md §4.7.4) — the OLAP grouping and store-name prefixes are
// operator data, not constants, since they name real restaurant/category
// labels specific to this deployment.
type TransferConfig struct {
	GroupBy        string
	TopParent      string
	SourcePrefix   string
	TargetPrefixes []string
	ProductID      string
}

func loadTransferConfig(env *EnvConfig) TransferConfig {
	return TransferConfig{
		GroupBy:        env.GetString("TRANSFER_GROUP_BY", "Account.Name,Product.TopParent"),
		TopParent:      env.GetString("TRANSFER_TOP_PARENT", "Расходные материалы"),
		SourcePrefix:   env.GetString("TRANSFER_SOURCE_PREFIX", "Хоз. товары"),
		TargetPrefixes: env.GetStringSlice("TRANSFER_TARGET_PREFIXES", []string{"Бар", "Кухня"}),
		ProductID:      env.GetString("TRANSFER_PRODUCT_ID", ""),
	}
}

// ServiceConfig carries service identity for logging and the CLI.
type ServiceConfig struct {
	Name        string
	Environment string
	LogLevel    string
	LogFormat   string
}

func loadServiceConfig(env *EnvConfig) ServiceConfig {
	return ServiceConfig{
		Name:        env.GetString("NAME", "backoffice"),
		Environment: env.GetString("ENVIRONMENT", "development"),
		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		LogFormat:   env.GetString("LOG_FORMAT", "text"),
	}
}

// ServerConfig configures the operator-facing HTTP surface (health, state,
// webhook intake).
type ServerConfig struct {
	Port              int
	Host              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
	OperatorTokenSecret string // empty disables bearer auth on /state
}

func loadServerConfig(env *EnvConfig) ServerConfig {
	return ServerConfig{
		Port:                env.GetInt("PORT", 8080),
		Host:                env.GetString("HOST", "0.0.0.0"),
		ReadTimeout:         env.GetDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        env.GetDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout:     env.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		OperatorTokenSecret: env.GetString("OPERATOR_TOKEN_SECRET", ""),
	}
}

// Config is the fully loaded, validated configuration for one process.
type Config struct {
	Service     ServiceConfig
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	POS         POSConfig
	Finance     FinanceConfig
	Cloud       CloudConfig
	Telegram    TelegramConfig
	Spreadsheet SpreadsheetConfig
	Scheduler   SchedulerConfig
	Cooldown    CooldownConfig
	Transfer    TransferConfig
}

// Load reads every environment variable this service needs and validates
// the required ones, failing fast with every problem listed at once rather
// than stopping at the first missing value.
func Load() (*Config, error) {
	env := NewEnvConfig("")

	cfg := &Config{
		Service:     loadServiceConfig(env),
		Server:      loadServerConfig(env),
		Database:    loadDatabaseConfig(env),
		Cache:       loadCacheConfig(env),
		POS:         loadPOSConfig(env),
		Finance:     loadFinanceConfig(env),
		Cloud:       loadCloudConfig(env),
		Telegram:    loadTelegramConfig(env),
		Spreadsheet: loadSpreadsheetConfig(env),
		Scheduler:   loadSchedulerConfig(env),
		Cooldown:    loadCooldownConfig(env),
		Transfer:    loadTransferConfig(env),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	v := NewValidator()

	v.RequireOneOf("Service.Environment", c.Service.Environment, []string{"development", "staging", "production"})
	v.RequireOneOf("Service.LogLevel", c.Service.LogLevel, []string{"debug", "info", "warn", "error"})
	v.RequirePositiveInt("Server.Port", c.Server.Port)

	v.RequireURL("Database.URL", c.Database.DSN)
	v.RequireURL("POS.BaseURL", c.POS.BaseURL)
	v.RequireString("POS.Login", c.POS.Login)
	v.RequireURL("Finance.BaseURL", c.Finance.BaseURL)
	v.RequireURL("Cloud.BaseURL", c.Cloud.BaseURL)
	v.RequireString("Telegram.BotToken", c.Telegram.BotToken)

	if c.Cache.URL != "" {
		v.RequireURL("Cache.URL", c.Cache.URL)
	}

	if c.Spreadsheet.UseLegacyAdminTables {
		// legacy path needs nothing beyond the database itself
	} else {
		v.RequireString("Spreadsheet.SpreadsheetID", c.Spreadsheet.SpreadsheetID)
	}

	return v.Validate()
}

// RedactedFields returns the subset of configuration safe to log: secret
// values are masked, everything else passed through. Used at startup to
// log "configuration loaded" without ever printing a credential.
func (c *Config) RedactedFields() map[string]string {
	return map[string]string{
		"service.name":        c.Service.Name,
		"service.environment": c.Service.Environment,
		"pos.base_url":        c.POS.BaseURL,
		"pos.login":           c.POS.Login,
		"finance.base_url":    c.Finance.BaseURL,
		"cloud.base_url":      c.Cloud.BaseURL,
		"database.dsn":        maskDSN(c.Database.DSN),
		"telegram.bot_token":  maskSecret(c.Telegram.BotToken),
	}
}

func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func maskDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "<unparsable>"
	}
	if parsed.User != nil {
		parsed.User = url.User(parsed.User.Username())
	}
	return parsed.String()
}
