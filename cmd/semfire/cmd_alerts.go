package main

// ---------------------------------------------------------------------------
// cmd_alerts.go — fetch/manage alerts from a running instance
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"
)

func cmdAlerts(args []string) {
	if len(args) > 0 {
		switch args[0] {
		case "ack", "acknowledge":
			cmdAlertsUpdateStatus(args[1:], "ACKNOWLEDGED")
			return
		case "resolve":
			cmdAlertsUpdateStatus(args[1:], "RESOLVED")
			return
		case "false-positive":
			cmdAlertsUpdateStatus(args[1:], "FALSE_POSITIVE")
			return
		case "clear":
			cmdAlertsClear(args[1:])
			return
		}
	}

	fs := flag.NewFlagSet("alerts", flag.ExitOnError)
	configPath := fs.String("config", "configs/default.yaml", "Config file path")
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	severity := fs.String("severity", "", "Minimum severity: INFO, LOW, MEDIUM, HIGH, CRITICAL")
	limit := fs.Int("limit", 20, "Maximum alerts to fetch")
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

	url := fmt.Sprintf("%s/api/v1/alerts?limit=%d", base, *limit)
	if *severity != "" {
		url += "&min_severity=" + *severity
	}

	body, err := apiGet(url, apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	if *jsonOut || parseFormat(*format) == FormatJSON {
		fmt.Println(string(body))
		return
	}

	var resp struct {
		Alerts []struct {
			ID        string    `json:"id"`
			Timestamp time.Time `json:"timestamp"`
			Detector  string    `json:"detector"`
			Severity  string    `json:"severity"`
			Status    string    `json:"status"`
			Title     string    `json:"title"`
		} `json:"alerts"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		errorf("parsing alerts response: %v", err)
	}

	if resp.Total == 0 {
		fmt.Printf("%s no alerts\n", green("✓"))
		return
	}

	tbl := NewTable(os.Stdout, "ID", "TIME", "DETECTOR", "SEVERITY", "STATUS", "TITLE")
	for _, a := range resp.Alerts {
		sev := a.Severity
		switch sev {
		case "CRITICAL", "HIGH":
			sev = red(sev)
		case "MEDIUM":
			sev = yellow(sev)
		}
		tbl.AddRow(a.ID[:8], a.Timestamp.Format("15:04:05"), a.Detector, sev, a.Status, a.Title)
	}
	tbl.Render()
	fmt.Printf("\n%d alert(s)\n", resp.Total)
}

func cmdAlertsUpdateStatus(args []string, status string) {
	fs := flag.NewFlagSet("alerts-update", flag.ExitOnError)
	configPath := fs.String("config", "configs/default.yaml", "Config file path")
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	timeoutStr := fs.String("timeout", "5s", "Request timeout")
	fs.Parse(args)

	if fs.NArg() < 1 {
		errorf("alert ID required")
	}
	alertID := fs.Arg(0)

	cfgPath := envConfig(*configPath)
	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		timeout = 5 * time.Second
	}

	base := apiBase(cfgPath, envHost(*host), envPort(*port))
	apiKey := resolveAPIKey(*apiKeyFlag, cfgPath)

	payload, _ := json.Marshal(map[string]string{"status": status})
	if _, err := apiPatch(base+"/api/v1/alerts/"+alertID, payload, apiKey, timeout); err != nil {
		errorf("%v", err)
	}
	fmt.Printf("%s alert %s → %s\n", green("✓"), alertID, status)
}

func cmdAlertsClear(args []string) {
	fs := flag.NewFlagSet("alerts-clear", flag.ExitOnError)
	configPath := fs.String("config", "configs/default.yaml", "Config file path")
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	timeoutStr := fs.String("timeout", "5s", "Request timeout")
	fs.Parse(args)

	cfgPath := envConfig(*configPath)
	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		timeout = 5 * time.Second
	}

	base := apiBase(cfgPath, envHost(*host), envPort(*port))
	apiKey := resolveAPIKey(*apiKeyFlag, cfgPath)

	body, err := apiPost(base+"/api/v1/alerts/clear", nil, apiKey, timeout)
	if err != nil {
		errorf("%v", err)
	}

	var resp struct {
		Cleared int `json:"cleared"`
	}
	_ = json.Unmarshal(body, &resp)
	fmt.Printf("%s cleared %d alert(s)\n", green("✓"), resp.Cleared)
}
