package main

// ---------------------------------------------------------------------------
// cmd_config.go — show, validate, or initialize configuration
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/semfire-project/semfire/internal/core"
)

func cmdConfig(args []string) {
	sub := "show"
	if len(args) > 0 {
		switch args[0] {
		case "show", "init", "validate":
			sub = args[0]
			args = args[1:]
		}
	}

	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", "configs/default.yaml", "Config file path")
	force := fs.Bool("force", false, "Overwrite an existing file (init)")
	fs.Parse(args)

	path := envConfig(*configPath)

	switch sub {
	case "init":
		if _, err := os.Stat(path); err == nil && !*force {
			errorf("%s already exists — use --force to overwrite", path)
		}
		cfg := core.DefaultConfig()
		if err := core.SaveConfig(cfg, path); err != nil {
			errorf("writing config: %v", err)
		}
		fmt.Printf("%s wrote starter configuration to %s\n", green("✓"), path)

	case "validate":
		cfg, err := core.LoadConfig(path)
		if err != nil {
			errorf("invalid config %s: %v", path, err)
		}
		if cfg.Firewall.Threshold <= 0 || cfg.Firewall.Threshold > 1 {
			errorf("firewall.threshold must be in (0, 1], got %.2f", cfg.Firewall.Threshold)
		}
		enabled := 0
		for name := range cfg.Detectors {
			if cfg.IsDetectorEnabled(name) {
				enabled++
			}
		}
		if enabled == 0 {
			errorf("no detectors enabled")
		}
		fmt.Printf("%s %s is valid (%d detector(s) enabled, threshold %.2f)\n",
			green("✓"), path, enabled, cfg.Firewall.Threshold)

	case "show":
		cfg := loadConfigOrDefault(path)
		// Redact secrets before printing
		cfg.Server.APIKeys = nil
		cfg.LLM.APIKeys = nil
		data, err := yaml.Marshal(cfg)
		if err != nil {
			errorf("marshaling config: %v", err)
		}
		fmt.Print(string(data))
	}
}
