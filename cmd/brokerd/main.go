// Command brokerd runs the WoT broker: it binds the configured transports,
// attaches any demo Things, and serves until interrupted.
//
// Configuration Loading Strategy mirrors the teacher's cmd/orchestrator:
// 1. Command line argument: uses the specified config file path.
// 2. Default file: attempts to load config/wotbroker.yaml.
// 3. Hardcoded defaults: falls back to config.Default().
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tenzoki/wotbroker/internal/broker"
	"github.com/tenzoki/wotbroker/internal/config"
	"github.com/tenzoki/wotbroker/internal/thing"
	"github.com/tenzoki/wotbroker/internal/thing/fixture"
)

const defaultConfigPath = "config/wotbroker.yaml"

func main() {
	demo := flag.Bool("demo", false, "attach a demo light Thing at startup")
	flag.Parse()

	cfg, source := loadConfig(flag.Args())
	log.Printf("brokerd: starting using %s", source)
	if cfg.Debug {
		log.Printf("brokerd: debug logging enabled")
	}

	things := map[string]thing.Thing{}
	if *demo {
		things["light"] = fixture.NewLight("light", 0)
	}

	sup := broker.NewSupervisor(cfg.Debug)
	if err := sup.Start(things, cfg.Transports); err != nil {
		log.Fatalf("brokerd: failed to start: %v", err)
	}
	log.Printf("brokerd: bound transports: %v", cfg.Transports)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("brokerd: received signal %s, shutting down", sig)

	done := make(chan struct{})
	go func() {
		if err := sup.Stop(); err != nil {
			log.Printf("brokerd: stop error: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
		log.Printf("brokerd: shut down cleanly")
	case <-time.After(10 * time.Second):
		log.Printf("brokerd: shutdown timeout exceeded")
	}
}

// loadConfig resolves the configuration-source priority chain and returns a
// human-readable description of which source was used.
func loadConfig(args []string) (*config.Config, string) {
	if len(args) >= 1 {
		cfg, err := config.Load(args[0])
		if err != nil {
			log.Fatalf("brokerd: failed to load config from %s: %v", args[0], err)
		}
		return cfg, fmt.Sprintf("config file: %s", args[0])
	}

	if _, err := os.Stat(defaultConfigPath); err == nil {
		cfg, err := config.Load(defaultConfigPath)
		if err != nil {
			log.Printf("brokerd: %s exists but failed to load: %v", defaultConfigPath, err)
			return config.Default(), "hardcoded defaults (default config file failed to parse)"
		}
		return cfg, fmt.Sprintf("%s (default)", defaultConfigPath)
	}

	return config.Default(), "hardcoded defaults"
}
