package banner

import (
	"fmt"

	"whisperboard/pkg/config"
)

const banner = `
██╗    ██╗██╗  ██╗██╗███████╗██████╗ ███████╗██████╗ ██████╗  ██████╗  █████╗ ██████╗ ██████╗
██║    ██║██║  ██║██║██╔════╝██╔══██╗██╔════╝██╔══██╗██╔══██╗██╔═══██╗██╔══██╗██╔══██╗██╔══██╗
██║ █╗ ██║███████║██║███████╗██████╔╝█████╗  ██████╔╝██████╔╝██║   ██║███████║██████╔╝██║  ██║
██║███╗██║██╔══██║██║╚════██║██╔═══╝ ██╔══╝  ██╔══██╗██╔══██╗██║   ██║██╔══██║██╔══██╗██║  ██║
╚███╔███╔╝██║  ██║██║███████║██║     ███████╗██║  ██║██████╔╝╚██████╔╝██║  ██║██║  ██║██████╔╝
 ╚══╝╚══╝ ╚═╝  ╚═╝╚═╝╚══════╝╚═╝     ╚══════╝╚═╝  ╚═╝╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝
`

// PrintWithEff prints the startup banner with the effective runtime info.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Storage.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "defaults"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", src)

	fmt.Println("\n== Examples ===================================================")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/threads' -d '{\"topic\":\"life\",\"text\":\"hello\"}'")
	fmt.Println("curl 'http://<host>:<port>/v1/threads?topic=life'")
	fmt.Println("websocat 'ws://<host>:<port>/v1/topics/life/events'")

	fmt.Println("\n== Production? =================================================")
	if eff.Config == nil {
		fmt.Println("- No effective config; running on defaults")
		fmt.Println("\n== Logs: =================================================")
		return
	}
	if n := len(eff.Config.Security.SigningKeys); n > 0 {
		fmt.Printf("- Signing keys: OK (%d)\n", n)
	} else {
		fmt.Println("- Signing keys: MISSING (mutations will be rejected)")
	}
	if eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}
	switch eff.Config.Blob.Provider {
	case "minio":
		fmt.Printf("- Attachments: minio (%s/%s)\n", eff.Config.Blob.Endpoint, eff.Config.Blob.Bucket)
	case "memory":
		fmt.Println("- Attachments: in-memory (dev only)")
	default:
		fmt.Println("- Attachments: disabled")
	}
	if eff.Config.Notify.Redis.Addr != "" {
		fmt.Printf("- Broadcast bridge: redis (%s)\n", eff.Config.Notify.Redis.Addr)
	} else {
		fmt.Println("- Broadcast bridge: local only")
	}
	if eff.Config.Retention.Enabled {
		fmt.Printf("- Retention: enabled (cron=%s)\n", eff.Config.Retention.Cron)
	} else {
		fmt.Println("- Retention: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
