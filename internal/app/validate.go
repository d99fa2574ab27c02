package app

import (
	"fmt"
	"os"

	"whisperboard/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, WHISPERBOARD_DB_PATH env, or storage.db_path in config")
	}

	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	switch eff.Config.Blob.Provider {
	case "", "memory":
	case "minio":
		if eff.Config.Blob.Endpoint == "" || eff.Config.Blob.Bucket == "" {
			return fmt.Errorf("minio blob provider requires blob.endpoint and blob.bucket")
		}
	default:
		return fmt.Errorf("unknown blob provider %q", eff.Config.Blob.Provider)
	}

	switch eff.Config.Server.Health.Engine {
	case "", "fasthttp", "nethttp":
	default:
		return fmt.Errorf("unknown health engine %q", eff.Config.Server.Health.Engine)
	}

	return nil
}
