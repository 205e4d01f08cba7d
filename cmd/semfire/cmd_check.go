package main

// ---------------------------------------------------------------------------
// cmd_check.go — boolean verdict for scripting
//
// Exit codes: 0 = benign, 1 = error, 2 = manipulative.
// ---------------------------------------------------------------------------

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/semfire-project/semfire/internal/engine"
)

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "configs/default.yaml", "Config file path")
	threshold := fs.Float64("threshold", 0, "Override the configured verdict threshold")
	quiet := fs.Bool("quiet", false, "Suppress output, exit code only")
	noLLM := fs.Bool("no-llm", false, "Skip the language-model signal even if configured")
	var history multiFlag
	fs.Var(&history, "history", "Prior conversation turn (repeatable, oldest first)")
	fs.Parse(args)

	message := readMessage(fs.Args())
	if message == "" {
		errorf("no message to check — pass it as an argument or pipe it on stdin")
	}

	cfg := loadConfigOrDefault(envConfig(*configPath))
	cfg.Bus.Enabled = false
	cfg.Logging.Level = "error"
	if *noLLM {
		cfg.LLM.Enabled = false
	}
	if *threshold > 0 {
		cfg.Firewall.Threshold = *threshold
	}

	eng, err := engine.New(cfg)
	if err != nil {
		errorf("building engine: %v", err)
	}

	manipulative, err := eng.IsManipulative(context.Background(), message, history)
	if err != nil {
		errorf("analysis failed: %v", err)
	}

	if manipulative {
		if !*quiet {
			fmt.Printf("%s manipulative (threshold %.2f)\n", red("✗"), cfg.Firewall.Threshold)
		}
		os.Exit(2)
	}
	if !*quiet {
		fmt.Printf("%s benign (threshold %.2f)\n", green("✓"), cfg.Firewall.Threshold)
	}
}
