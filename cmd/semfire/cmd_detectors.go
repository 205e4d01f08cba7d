package main

// ---------------------------------------------------------------------------
// cmd_detectors.go — list configured detectors
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"
)

func cmdDetectors(args []string) {
	fs := flag.NewFlagSet("detectors", flag.ExitOnError)
	configPath := fs.String("config", "configs/default.yaml", "Config file path")
	host := fs.String("host", "", "API host override")
	port := fs.Int("port", 0, "API port override")
	apiKeyFlag := fs.String("api-key", "", "API key for authentication")
	jsonOut := fs.Bool("json", false, "Output raw JSON")
	local := fs.Bool("local", false, "List from config without contacting a running instance")
	fs.Parse(args)

	cfgPath := envConfig(*configPath)

	if !*local {
		base := apiBase(cfgPath, envHost(*host), envPort(*port))
		apiKey := resolveAPIKey(*apiKeyFlag, cfgPath)
		body, err := apiGet(base+"/api/v1/detectors", apiKey, 5*time.Second)
		if err == nil {
			if *jsonOut {
				fmt.Println(string(body))
				return
			}
			var resp struct {
				Detectors []struct {
					Name    string `json:"name"`
					Enabled bool   `json:"enabled"`
				} `json:"detectors"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				errorf("parsing detectors response: %v", err)
			}
			tbl := NewTable(os.Stdout, "DETECTOR", "ENABLED")
			for _, d := range resp.Detectors {
				tbl.AddRow(d.Name, fmt.Sprintf("%v", d.Enabled))
			}
			tbl.Render()
			return
		}
		warnf("no running instance reachable, listing from config")
	}

	cfg := loadConfigOrDefault(cfgPath)
	names := make([]string, 0, len(cfg.Detectors))
	for name := range cfg.Detectors {
		names = append(names, name)
	}
	sort.Strings(names)

	if *jsonOut {
		out := make([]map[string]interface{}, 0, len(names))
		for _, name := range names {
			out = append(out, map[string]interface{}{
				"name":    name,
				"enabled": cfg.IsDetectorEnabled(name),
			})
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}

	tbl := NewTable(os.Stdout, "DETECTOR", "ENABLED")
	for _, name := range names {
		enabled := fmt.Sprintf("%v", cfg.IsDetectorEnabled(name))
		if cfg.IsDetectorEnabled(name) {
			enabled = green(enabled)
		}
		tbl.AddRow(name, enabled)
	}
	tbl.Render()
}
