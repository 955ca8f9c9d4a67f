package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/alexjoedt/docstore/internal/config"
	"github.com/alexjoedt/docstore/internal/server"
	"github.com/fatih/color"
)

// printBanner lists the served endpoints for the configured backend.
func printBanner(w io.Writer, cfg *config.Config) {
	rule := strings.Repeat("=", 52)
	title := color.New(color.FgCyan, color.Bold)
	method := color.New(color.FgGreen)

	features := server.FeaturesFor(cfg.Storage.Backend)
	endpoints := [][3]string{
		{"GET", "/", "Health check & stored keys"},
		{"GET", "/data", "List all stored data keys"},
	}
	if features.AllRoute {
		endpoints = append(endpoints, [3]string{"GET", "/all", "Get ALL data in one response"})
	}
	endpoints = append(endpoints,
		[3]string{"GET", "/data/:name", "Get specific data"},
		[3]string{"POST", "/data/:name", "Store data with key"},
	)
	if features.AutoKey {
		endpoints = append(endpoints, [3]string{"POST", "/data", "Store data (uses company_name as key)"})
	}

	fmt.Fprintln(w, rule)
	title.Fprintf(w, "  %s - RUNNING ON PORT %d\n", strings.ToUpper(cfg.Server.Message), cfg.Server.Port)
	fmt.Fprintf(w, "  Backend: %s", cfg.Storage.Backend)
	if cfg.Storage.Backend == config.BackendFile {
		fmt.Fprintf(w, " (%s)", cfg.ResolveDataDir())
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "  Endpoints:")
	for _, e := range endpoints {
		fmt.Fprint(w, "  - ")
		method.Fprintf(w, "%-5s", e[0])
		fmt.Fprintf(w, "%-13s %s\n", e[1], e[2])
	}
	fmt.Fprintln(w, rule)
}
