// Package main is the entry point for the earquiz API server
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/james-see/earquiz/internal/bootstrap"
	"github.com/james-see/earquiz/internal/config"
	"github.com/james-see/earquiz/internal/logger"
	"github.com/james-see/earquiz/pkg/api"
)

func main() {
	cfg := config.Load()

	defaultPort, err := strconv.Atoi(cfg.Port)
	if err != nil {
		defaultPort = 8080
	}
	port := flag.Int("port", defaultPort, "Server port")
	flag.Parse()

	flush := bootstrap.InitSentry(cfg)
	defer flush()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	drillCfg, err := cfg.DrillConfig()
	if err != nil {
		logger.Error("Invalid drill defaults", err, nil)
		os.Exit(1)
	}

	store, err := bootstrap.OpenStore(cfg)
	if err != nil {
		logger.Error("Failed to open result store", err, nil)
		os.Exit(1)
	}

	fmt.Printf("Starting earquiz API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(*port, drillCfg, store); err != nil {
		logger.Error("Server error", err, nil)
		os.Exit(1)
	}
}
