// Command beatshopd runs the beatshop HTTP server without the CLI command
// tree, for service managers that expect a single-purpose binary.
package main

import (
	"context"
	"flag"
	"log"

	"beatshop/internal/config"
	"beatshop/internal/serverrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	bind := flag.String("bind", "", "Override server.bind (host:port)")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := serverrun.Run(context.Background(), cfg, serverrun.Options{Bind: *bind}); err != nil {
		log.Fatalf("beatshopd: %v", err)
	}
}
