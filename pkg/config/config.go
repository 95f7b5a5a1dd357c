package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host       string
	Log        LogConfig
	Server     ServerConfig
	Database   DatabaseConfig
	Sampling   SamplingConfig
	Schedule   ScheduleConfig
	Agent      AgentConfig
	Probes     ProbesConfig
	Compliance ComplianceConfig
	EventLog   EventLogConfig
	Redis      RedisConfig
	NATS       NATSConfig
	CloudWatch CloudWatchConfig
	S3         S3Config
	DynamoDB   DynamoDBConfig
	Security   SecurityConfig
	Export     ExportConfig
	Checks     []CheckSettings
	Modes      map[string][]string
}

type LogConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type SamplingConfig struct {
	DefaultMode     string
	DefaultTicks    int
	DefaultInterval time.Duration
	MaxTicks        int
	ProbeTimeout    time.Duration
	Parallelism     int
}

type ScheduleConfig struct {
	Interval      time.Duration
	RunTimeout    time.Duration
	RetentionDays int
}

type AgentConfig struct {
	ProcessNames []string
}

type ProbesConfig struct {
	FileDir          string
	FileSizeKB       int
	NetworkTarget    string
	NetworkInterface string
}

type ComplianceConfig struct {
	Enabled        bool
	BaseURL        string
	Token          string
	Timeout        time.Duration
	CacheTTL       time.Duration
	AuditPageSize  int
	AuditResultCap int
	AuditWindow    time.Duration
	MatchOperation string
	UserCount      int
}

type EventLogConfig struct {
	Enabled   bool
	LogName   string
	Providers []string
	Window    time.Duration
	MaxEvents int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type NATSConfig struct {
	Enabled bool
	URL     string
	Stream  string
}

type CloudWatchConfig struct {
	Enabled         bool
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Namespace       string
	LogGroup        string
	LogStream       string
	FlushInterval   time.Duration
}

type S3Config struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
	URLMode         string
	PresignedTTL    time.Duration
}

type DynamoDBConfig struct {
	Enabled         bool
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	TTLDays         int
}

type SecurityConfig struct {
	AllowedOrigins     []string
	AuthEnabled        bool
	AuthToken          string
	RateLimitPerMinute int
}

type ExportConfig struct {
	CSVPath string
	Format  string
	NoColor bool
}

// Load reads .env, the environment and the optional thresholds file.
func Load() (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	var errs []error
	dur := func(key, def string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return d
	}
	num := func(key string, def int) int {
		n, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return n
	}

	hostname, _ := os.Hostname()

	cfg := &Config{
		Host: getEnv("KPIMON_HOST", hostname),
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "dlp_kpi"),
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Sampling: SamplingConfig{
			DefaultMode:     getEnv("KPIMON_DEFAULT_MODE", "quick"),
			DefaultTicks:    num("SAMPLING_DEFAULT_TICKS", 10),
			DefaultInterval: dur("SAMPLING_DEFAULT_INTERVAL", "1s"),
			MaxTicks:        num("SAMPLING_MAX_TICKS", 30),
			ProbeTimeout:    dur("SAMPLING_PROBE_TIMEOUT", "30s"),
			Parallelism:     num("SAMPLING_PARALLELISM", 1),
		},
		Schedule: ScheduleConfig{
			Interval:      dur("SCHEDULE_INTERVAL", "15m"),
			RunTimeout:    dur("SCHEDULE_RUN_TIMEOUT", "10m"),
			RetentionDays: num("SCHEDULE_RETENTION_DAYS", 30),
		},
		Agent: AgentConfig{
			ProcessNames: splitCSV(getEnv("AGENT_PROCESS_NAMES", "MsSense.exe,MsMpEng.exe,SenseNdr.exe,SenseCncProxy.exe,mdatp,wdavdaemon")),
		},
		Probes: ProbesConfig{
			FileDir:          getEnv("PROBE_FILE_DIR", os.TempDir()),
			FileSizeKB:       num("PROBE_FILE_SIZE_KB", 512),
			NetworkTarget:    getEnv("PROBE_NETWORK_TARGET", "login.microsoftonline.com:443"),
			NetworkInterface: getEnv("PROBE_NETWORK_INTERFACE", ""),
		},
		Compliance: ComplianceConfig{
			Enabled:        getEnvBool("COMPLIANCE_ENABLED", false),
			BaseURL:        getEnv("COMPLIANCE_BASE_URL", ""),
			Token:          getEnv("COMPLIANCE_TOKEN", ""),
			Timeout:        dur("COMPLIANCE_TIMEOUT", "30s"),
			CacheTTL:       dur("COMPLIANCE_CACHE_TTL", "10m"),
			AuditPageSize:  num("COMPLIANCE_AUDIT_PAGE_SIZE", 1000),
			AuditResultCap: num("COMPLIANCE_AUDIT_RESULT_CAP", 5000),
			AuditWindow:    dur("COMPLIANCE_AUDIT_WINDOW", "24h"),
			MatchOperation: getEnv("COMPLIANCE_MATCH_OPERATION", "DLPRuleMatch"),
			UserCount:      num("COMPLIANCE_USER_COUNT", 0),
		},
		EventLog: EventLogConfig{
			Enabled:   getEnvBool("EVENTLOG_ENABLED", false),
			LogName:   getEnv("EVENTLOG_NAME", "Microsoft-Windows-SENSE/Operational"),
			Providers: splitCSV(getEnv("EVENTLOG_PROVIDERS", "Microsoft-Windows-SENSE,Microsoft-Windows-Windows Defender")),
			Window:    dur("EVENTLOG_WINDOW", "1h"),
			MaxEvents: num("EVENTLOG_MAX_EVENTS", 500),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       num("REDIS_DB", 0),
			TTL:      dur("REDIS_TTL", "5m"),
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Stream:  getEnv("NATS_STREAM", "DLP_KPI"),
		},
		CloudWatch: CloudWatchConfig{
			Enabled:         getEnvBool("CLOUDWATCH_ENABLED", false),
			Region:          getEnv("CLOUDWATCH_REGION", "us-east-1"),
			Endpoint:        getEnv("CLOUDWATCH_ENDPOINT", ""),
			AccessKeyID:     getEnv("CLOUDWATCH_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("CLOUDWATCH_SECRET_ACCESS_KEY", ""),
			Namespace:       getEnv("CLOUDWATCH_NAMESPACE", "DLP/EndpointKPI"),
			LogGroup:        getEnv("CLOUDWATCH_LOG_GROUP", "/dlp/kpi-monitor"),
			LogStream:       getEnv("CLOUDWATCH_LOG_STREAM", hostname),
			FlushInterval:   dur("CLOUDWATCH_FLUSH_INTERVAL", "30s"),
		},
		S3: S3Config{
			Enabled:         getEnvBool("S3_ENABLED", false),
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", false),
			KeyPrefix:       getEnv("S3_KEY_PREFIX", "kpi-reports"),
			URLMode:         getEnv("S3_URL_MODE", "presigned"),
			PresignedTTL:    dur("S3_PRESIGNED_TTL", "15m"),
		},
		DynamoDB: DynamoDBConfig{
			Enabled:         getEnvBool("DYNAMODB_ENABLED", false),
			TableName:       getEnv("DYNAMODB_TABLE", "dlp-kpi-reports"),
			Region:          getEnv("DYNAMODB_REGION", "us-east-1"),
			Endpoint:        getEnv("DYNAMODB_ENDPOINT", ""),
			AccessKeyID:     getEnv("DYNAMODB_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("DYNAMODB_SECRET_ACCESS_KEY", ""),
			TTLDays:         num("DYNAMODB_TTL_DAYS", 90),
		},
		Security: SecurityConfig{
			AllowedOrigins:     splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8080,http://127.0.0.1:8080")),
			AuthEnabled:        getEnvBool("AUTH_ENABLED", false),
			AuthToken:          getEnv("AUTH_BEARER_TOKEN", ""),
			RateLimitPerMinute: num("API_RATE_LIMIT_PER_MINUTE", 60),
		},
		Export: ExportConfig{
			CSVPath: getEnv("EXPORT_CSV_PATH", ""),
			Format:  getEnv("OUTPUT_FORMAT", "table"),
			NoColor: getEnvBool("NO_COLOR", false),
		},
		Checks: DefaultChecks(),
		Modes:  DefaultModes(),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if path := getEnv("KPIMON_THRESHOLDS_FILE", ""); path != "" {
		if err := cfg.applyThresholdsFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Security.AuthEnabled && c.Security.AuthToken == "" {
		return fmt.Errorf("AUTH_BEARER_TOKEN is required when AUTH_ENABLED=true")
	}
	if c.Sampling.MaxTicks <= 0 {
		return fmt.Errorf("SAMPLING_MAX_TICKS must be positive")
	}
	if c.Sampling.DefaultTicks <= 0 || c.Sampling.DefaultTicks > c.Sampling.MaxTicks {
		return fmt.Errorf("SAMPLING_DEFAULT_TICKS must be between 1 and %d", c.Sampling.MaxTicks)
	}
	if c.Sampling.DefaultInterval <= 0 {
		return fmt.Errorf("SAMPLING_DEFAULT_INTERVAL must be positive")
	}
	if c.Sampling.Parallelism <= 0 {
		return fmt.Errorf("SAMPLING_PARALLELISM must be positive")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when S3_ENABLED=true")
	}

	if err := c.validateChecks(); err != nil {
		return err
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}
