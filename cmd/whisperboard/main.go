package main

import (
	"context"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"whisperboard/internal/app"
	"whisperboard/pkg/config"
	"whisperboard/pkg/logger"
	"whisperboard/pkg/shutdown"
)

// build metadata, set via ldflags during release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	eff, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// flags win over env and file values
	if setFlags["addr"] {
		eff.Addr = addrVal
		host, port := splitAddr(addrVal)
		eff.Config.Server.Address = host
		if port != 0 {
			eff.Config.Server.Port = port
		}
	}
	if setFlags["db"] {
		eff.DBPath = dbVal
		eff.Config.Storage.DBPath = dbVal
	}
	if len(setFlags) > 0 {
		if eff.Source == "defaults" {
			eff.Source = "flags"
		} else {
			eff.Source += "+flags"
		}
	}

	logger.Init(eff.Config.Logging.Level)
	defer logger.Sync()

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("startup failed", err, eff.DBPath, 0)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server exited", err, eff.DBPath, 0)
	}
}

func splitAddr(s string) (string, int) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return s, 0
	}
	port := 0
	for _, c := range s[i+1:] {
		if c < '0' || c > '9' {
			return s, 0
		}
		port = port*10 + int(c-'0')
	}
	return s[:i], port
}
