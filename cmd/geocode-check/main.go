package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/wprdc/asset-registry/internal/config"
	"github.com/wprdc/asset-registry/internal/geocoding"
)

// Quick sanity check for the geocoding configuration: resolves one address
// from the command line and prints the coordinates.
//
//	go run ./cmd/geocode-check 414 Grant St, Pittsburgh, PA 15219
func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()

	address := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if address == "" {
		fmt.Fprintln(os.Stderr, "usage: geocode-check <street address>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	client := geocoding.NewClient(cfg.Geocoding)
	if client == nil {
		fmt.Fprintln(os.Stderr, "geocoding is disabled; set GEOCODING_ENABLED=true and GOOGLE_MAPS_API_KEY")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lat, lon, err := client.Geocode(ctx, address)
	if err != nil {
		fmt.Fprintf(os.Stderr, "geocode %q: %v\n", address, err)
		os.Exit(1)
	}
	fmt.Printf("%s\n  latitude:  %f\n  longitude: %f\n", address, lat, lon)
}
