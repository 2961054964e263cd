package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	wpmcp "github.com/claude/workoutpal/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", os.Getenv("WORKOUTPAL_URL"), "WorkoutPal server URL (e.g. https://workoutpal.tail1234.ts.net)")
	apiKey := flag.String("api-key", os.Getenv("WORKOUTPAL_AUTH_API_KEY"), "API key for the REST API")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("workoutpal-mcp", Version)
		return
	}

	// stdout carries the MCP protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *serverURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: workoutpal-mcp -server <URL> -api-key <key>\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	client := wpmcp.NewHTTPClient(*serverURL, *apiKey)
	s := wpmcp.New(client, Version, log)

	log.Info("mcp stdio server starting", "server", *serverURL)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
