package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
)

// ParseCommandFlags parses process flags and reports which were explicitly
// set so callers can let flags win over env and file values.
func ParseCommandFlags() (addr, db, cfgPath string, set map[string]bool) {
	addrFlag := flag.String("addr", ":8080", "listen address")
	dbFlag := flag.String("db", "./data", "path to the pebble database directory")
	cfgFlag := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	set = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return *addrFlag, *dbFlag, *cfgFlag, set
}

// ResolveConfigPath picks the config file path: an explicit flag wins,
// then WHISPERBOARD_CONFIG, then the conventional ./whisperboard.yaml if
// it exists.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet && flagVal != "" {
		return flagVal
	}
	if p := os.Getenv("WHISPERBOARD_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("whisperboard.yaml"); err == nil {
		return "whisperboard.yaml"
	}
	return ""
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Config) {
	if src.Server.Address != "" {
		dst.Server.Address = src.Server.Address
	}
	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}
	if src.Server.TLS.CertFile != "" {
		dst.Server.TLS.CertFile = src.Server.TLS.CertFile
	}
	if src.Server.TLS.KeyFile != "" {
		dst.Server.TLS.KeyFile = src.Server.TLS.KeyFile
	}
	if src.Server.Health.Addr != "" {
		dst.Server.Health = src.Server.Health
	}
	if src.Storage.DBPath != "" {
		dst.Storage.DBPath = src.Storage.DBPath
	}
	if src.Blob.Provider != "" {
		dst.Blob = src.Blob
	}
	if src.Notify.SendBuffer != 0 {
		dst.Notify.SendBuffer = src.Notify.SendBuffer
	}
	if src.Notify.Redis.Addr != "" {
		dst.Notify.Redis = src.Notify.Redis
	}
	if len(src.Security.CORS.AllowedOrigins) > 0 {
		dst.Security.CORS.AllowedOrigins = append([]string(nil), src.Security.CORS.AllowedOrigins...)
	}
	if src.Security.RateLimit.RPS > 0 {
		dst.Security.RateLimit.RPS = src.Security.RateLimit.RPS
	}
	if src.Security.RateLimit.Burst > 0 {
		dst.Security.RateLimit.Burst = src.Security.RateLimit.Burst
	}
	if len(src.Security.SigningKeys) > 0 {
		dst.Security.SigningKeys = append([]string(nil), src.Security.SigningKeys...)
	}
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Validation.MaxTextLen != 0 {
		dst.Validation.MaxTextLen = src.Validation.MaxTextLen
	}
	if src.Validation.MaxAttachments != 0 {
		dst.Validation.MaxAttachments = src.Validation.MaxAttachments
	}
	if src.Validation.MaxTopicLen != 0 {
		dst.Validation.MaxTopicLen = src.Validation.MaxTopicLen
	}
	if src.Retention.Enabled {
		dst.Retention = src.Retention
	}
	if src.Retention.Cron != "" {
		dst.Retention.Cron = src.Retention.Cron
	}
}

// applyEnv overlays WHISPERBOARD_* environment variables and reports
// whether any were used.
func applyEnv(c *Config) bool {
	used := false
	if v := os.Getenv("WHISPERBOARD_ADDR"); v != "" {
		host, port := splitHostPort(v)
		c.Server.Address = host
		if port != 0 {
			c.Server.Port = port
		}
		used = true
	}
	if v := os.Getenv("WHISPERBOARD_DB_PATH"); v != "" {
		c.Storage.DBPath = v
		used = true
	}
	if v := os.Getenv("WHISPERBOARD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
		used = true
	}
	if v := os.Getenv("WHISPERBOARD_SIGNING_KEYS"); v != "" {
		c.Security.SigningKeys = splitList(v)
		used = true
	}
	if v := os.Getenv("WHISPERBOARD_REDIS_ADDR"); v != "" {
		c.Notify.Redis.Addr = v
		used = true
	}
	if v := os.Getenv("WHISPERBOARD_BLOB_ENDPOINT"); v != "" {
		c.Blob.Endpoint = v
		if c.Blob.Provider == "" {
			c.Blob.Provider = "minio"
		}
		used = true
	}
	if v := os.Getenv("WHISPERBOARD_BLOB_ACCESS_KEY"); v != "" {
		c.Blob.AccessKey = v
		used = true
	}
	if v := os.Getenv("WHISPERBOARD_BLOB_SECRET_KEY"); v != "" {
		c.Blob.SecretKey = v
		used = true
	}
	if v := os.Getenv("WHISPERBOARD_BLOB_BUCKET"); v != "" {
		c.Blob.Bucket = v
		used = true
	}
	return used
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func splitHostPort(s string) (string, int) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, 0
	}
	host := s[:i]
	port, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return s, 0
	}
	return host, port
}
