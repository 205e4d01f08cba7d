package main

// ---------------------------------------------------------------------------
// cmd_analyze.go — run the firewall locally over one conversation
// ---------------------------------------------------------------------------

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/semfire-project/semfire/internal/engine"
)

func cmdAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "configs/default.yaml", "Config file path")
	format := fs.String("format", "table", "Output format: table, json")
	jsonOut := fs.Bool("json", false, "Output raw JSON (shorthand for --format json)")
	output := fs.String("output", "", "Write output to file")
	noLLM := fs.Bool("no-llm", false, "Skip the language-model signal even if configured")
	var history multiFlag
	fs.Var(&history, "history", "Prior conversation turn (repeatable, oldest first)")
	fs.Parse(args)

	message := readMessage(fs.Args())
	if message == "" {
		errorf("no message to analyze — pass it as an argument or pipe it on stdin")
	}

	cfg := loadConfigOrDefault(envConfig(*configPath))
	cfg.Bus.Enabled = false
	if *noLLM {
		cfg.LLM.Enabled = false
	}
	if !isTTY(os.Stderr) || *jsonOut || parseFormat(*format) == FormatJSON {
		cfg.Logging.Level = "error"
	}

	eng, err := engine.New(cfg)
	if err != nil {
		errorf("building engine: %v", err)
	}

	report, err := eng.Analyze(context.Background(), message, history)
	if err != nil {
		errorf("analysis failed: %v", err)
	}

	if *jsonOut {
		*format = "json"
	}
	w, closeFn := outputWriter(*output)
	defer closeFn()

	if parseFormat(*format) == FormatJSON {
		flagged := report.Flagged(eng.Threshold())
		if flagged == nil {
			flagged = []string{}
		}
		data, _ := json.MarshalIndent(map[string]interface{}{
			"manipulative": len(flagged) > 0,
			"flagged":      flagged,
			"threshold":    eng.Threshold(),
			"report":       report,
		}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Strings(names)

	tbl := NewTable(w, "DETECTOR", "CLASSIFICATION", "SCORE", "INDICATORS")
	for _, name := range names {
		entry := report[name]
		if entry.Error != "" {
			tbl.AddRow(name, red("error"), "-", entry.Error)
			continue
		}
		r := entry.Result
		cls := r.Classification
		if r.Concerning() && r.PrimaryScore >= eng.Threshold() {
			cls = red(cls)
		}
		tbl.AddRow(name, cls, fmt.Sprintf("%.2f", r.PrimaryScore), fmt.Sprintf("%d", len(r.Indicators)))
	}
	tbl.Render()
	fmt.Fprintln(w)

	for _, name := range names {
		entry := report[name]
		if entry.Result == nil {
			continue
		}
		r := entry.Result
		if r.Explanation != "" {
			fmt.Fprintf(w, "%s %s\n", bold(name+":"), r.Explanation)
		}
		for _, ind := range r.Indicators {
			fmt.Fprintf(w, "  %s %s\n", dim("-"), ind)
		}
		if r.LLMAnalysis != "" {
			fmt.Fprintf(w, "  %s %s\n", dim("llm ("+r.LLMStatus+"):"), strings.TrimSpace(r.LLMAnalysis))
		}
	}

	flagged := report.Flagged(eng.Threshold())
	fmt.Fprintln(w)
	if len(flagged) > 0 {
		fmt.Fprintf(w, "%s manipulative conversation — flagged by %s (threshold %.2f)\n",
			red("✗"), strings.Join(flagged, ", "), eng.Threshold())
	} else {
		fmt.Fprintf(w, "%s no detector crossed the threshold (%.2f)\n", green("✓"), eng.Threshold())
	}
}
