package main

import (
	"context"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"chatdb/internal/app"
	"chatdb/pkg/config"
	"chatdb/pkg/logger"
	"chatdb/pkg/shutdown"
)

// version is set via ldflags during release builds.
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	addrVal, dbVal, cfgVal, setFlags, err := config.ParseCommandFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// explicit flags win over file and env
	if setFlags["addr"] {
		if host, portStr, err := net.SplitHostPort(addrVal); err == nil {
			cfg.Server.Address = host
			if p, err := strconv.Atoi(portStr); err == nil {
				cfg.Server.Port = p
			}
		}
	}
	if setFlags["db"] {
		cfg.Storage.DBPath = dbVal
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()

	a, err := app.New(cfg, version)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()
	if err := a.Run(ctx); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
