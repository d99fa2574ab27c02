package config

// Config is the main configuration struct.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Blob       BlobConfig       `yaml:"blob"`
	Notify     NotifyConfig     `yaml:"notify"`
	Security   SecurityConfig   `yaml:"security"`
	Logging    LoggingConfig    `yaml:"logging"`
	Validation ValidationConfig `yaml:"validation"`
	Retention  RetentionConfig  `yaml:"retention"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
	// Health configures the standalone health listener. Engine selects the
	// transport: "fasthttp" (default when addr set) or "nethttp".
	Health HealthConfig `yaml:"health"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// HealthConfig configures the lightweight health sidecar listener.
type HealthConfig struct {
	Addr   string `yaml:"addr"`
	Engine string `yaml:"engine"` // fasthttp | nethttp
}

// StorageConfig holds the aggregate store settings.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// BlobConfig configures the attachment object-storage provider.
type BlobConfig struct {
	Provider  string `yaml:"provider"` // minio | memory
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	// PublicBaseURL overrides the URL prefix returned for uploaded objects.
	PublicBaseURL string `yaml:"public_base_url"`
}

// NotifyConfig configures the topic broadcast layer.
type NotifyConfig struct {
	// SendBuffer is the per-subscriber event buffer; a subscriber whose
	// buffer is full is dropped rather than blocking the mutation path.
	SendBuffer int `yaml:"send_buffer"`
	// Redis enables the cross-node pub/sub bridge when Addr is set.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds the optional Redis bridge settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// ChannelPrefix namespaces the pub/sub channels, default "whisper".
	ChannelPrefix string `yaml:"channel_prefix"`
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	// SigningKeys verify the HMAC principal signature on every request.
	SigningKeys []string `yaml:"signing_keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ValidationConfig bounds user-supplied content.
type ValidationConfig struct {
	MaxTextLen     int `yaml:"max_text_len"`
	MaxAttachments int `yaml:"max_attachments"`
	MaxTopicLen    int `yaml:"max_topic_len"`
}

// RetentionConfig holds configuration for the purge runner that deletes
// tombstoned threads and retries orphaned attachment cleanup.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	DryRun  bool   `yaml:"dry_run"`
}
