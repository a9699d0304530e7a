package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type ConsoleConfig struct {
	APIBaseURL  string
	RequesterID string
	DeityID     string
	PrayerType  string
	Timeout     time.Duration
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL:  getEnv("API_BASE_URL", "http://localhost:8080"),
		RequesterID: getEnv("REQUESTER_ID", "console"),
		DeityID:     getEnv("DEITY_ID", ""),
		PrayerType:  getEnv("PRAYER_TYPE", "blessing"),
		Timeout:     60 * time.Second,
	}
	if len(os.Args) > 1 {
		cfg.DeityID = os.Args[1]
	}
	if cfg.DeityID == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s <deity-id>\n   or: DEITY_ID=grove:sylvan %s\n", os.Args[0], os.Args[0])
		os.Exit(1)
	}

	client := newAPIClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.Timeout})

	if !client.healthy() {
		fmt.Fprintf(os.Stderr, "Could not connect to API at %s. Please ensure the API is running.\n", cfg.APIBaseURL)
		os.Exit(1)
	}

	eff, err := client.effectiveConfig(cfg.DeityID, cfg.PrayerType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to look up %s: %v\n", cfg.DeityID, err)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, client, eff),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
