package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/clubhouse247/clubops/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show clubops system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func showStatus() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		defer resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)

			var health struct {
				LLMEnabled bool `json:"llm_enabled"`
			}
			if json.NewDecoder(resp.Body).Decode(&health) == nil {
				if health.LLMEnabled {
					printStatus("LLM analysis", "enabled (%s)", cfg.LLM.Model)
				} else {
					printStatus("LLM analysis", "disabled")
				}
			}

			var tickets struct {
				Count int `json:"count"`
			}
			if tResp, err := client.Get(serverURL + "/tickets"); err == nil {
				if json.NewDecoder(tResp.Body).Decode(&tickets) == nil {
					printStatus("Tickets", "%d", tickets.Count)
				}
				tResp.Body.Close()
			}
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Facility", "%s", cfg.Facility.Name)
	printStatus("SOP dir", "%s", cfg.SOP.Dir)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
