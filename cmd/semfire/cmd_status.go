package main

// ---------------------------------------------------------------------------
// cmd_status.go — query a running instance
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "configs/default.yaml", "Config file path")
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	format := fs.String("format", "table", "Output format: table, json")
	jsonOut := fs.Bool("json", false, "Output raw JSON")
	timeoutStr := fs.String("timeout", "5s", "Request timeout")
	fs.Parse(args)

	cfgPath := envConfig(*configPath)
	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		timeout = 5 * time.Second
	}

	base := apiBase(cfgPath, envHost(*host), envPort(*port))
	apiKey := resolveAPIKey(*apiKeyFlag, cfgPath)

	body, err := apiGet(base+"/api/v1/status", apiKey, timeout)
	if err != nil {
		errorf("%v\n       Is the engine running? Start it with: semfire serve", err)
	}

	if *jsonOut || parseFormat(*format) == FormatJSON {
		fmt.Println(string(body))
		return
	}

	var status struct {
		Version      string   `json:"version"`
		Status       string   `json:"status"`
		BusConnected bool     `json:"bus_connected"`
		Detectors    []string `json:"detectors"`
		Threshold    float64  `json:"threshold"`
		AlertsTotal  int      `json:"alerts_total"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		errorf("parsing status response: %v", err)
	}

	fmt.Printf("%s semfire %s\n\n", bold("●"), status.Version)
	tbl := NewTable(os.Stdout, "FIELD", "VALUE")
	tbl.AddRow("status", green(status.Status))
	tbl.AddRow("detectors", strings.Join(status.Detectors, ", "))
	tbl.AddRow("threshold", fmt.Sprintf("%.2f", status.Threshold))
	tbl.AddRow("bus_connected", fmt.Sprintf("%v", status.BusConnected))
	tbl.AddRow("alerts_total", fmt.Sprintf("%d", status.AlertsTotal))
	tbl.Render()
}
