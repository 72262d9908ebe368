package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/quantfish/marlin/internal/config"
	"github.com/quantfish/marlin/internal/handlers"
	"github.com/quantfish/marlin/internal/logger"
	marlin "github.com/quantfish/marlin/marlin_lib"

	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()

	// Initialize proper logging with config level and file path
	if err := logger.InitWithConfig(cfg.Logging.LogLevel, cfg.Logging.LogFile); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	logger.Always.Printf("🚀 Marlin Options Pricing Service starting - Port: %s", cfg.Port)

	if cfg.Logging.LogLevel == "verbose" {
		fmt.Printf("⚠️  VERBOSE LOGGING ENABLED - per-request solver detail will be logged to %s\n", cfg.Logging.LogFile)
	}

	// Initialize engine from configuration
	engine := marlin.NewMarlinEngineWithConfig(cfg.EngineSolverConfig(), cfg.EngineBatchConfig())
	logger.Always.Printf("🔧 SOLVER: tol=%.1e max_iter=%d vol=[%g, %g]",
		cfg.Solver.PriceTolerance, cfg.Solver.MaxIterations, cfg.Solver.VolMin, cfg.Solver.VolMax)
	logger.Always.Printf("🔧 BATCH: parallel_threshold=%d workers=%d",
		cfg.Batch.ParallelThreshold, cfg.Batch.Workers)

	// Initialize handlers
	optionsHandler := handlers.NewOptionsHandler(engine)

	// Setup router
	r := mux.NewRouter()

	r.HandleFunc("/health", optionsHandler.HandleHealth).Methods("GET")

	// Scalar endpoints
	r.HandleFunc("/api/v1/price", optionsHandler.HandlePrice).Methods("POST")
	r.HandleFunc("/api/v1/greeks", optionsHandler.HandleGreeks).Methods("POST")
	r.HandleFunc("/api/v1/implied-vol", optionsHandler.HandleImpliedVol).Methods("POST")
	r.HandleFunc("/api/v1/boundary", optionsHandler.HandleBoundary).Methods("POST")

	// Batch endpoints
	r.HandleFunc("/api/v1/batch/price", optionsHandler.HandlePriceBatch).Methods("POST")
	r.HandleFunc("/api/v1/batch/greeks", optionsHandler.HandleGreeksBatch).Methods("POST")
	r.HandleFunc("/api/v1/batch/implied-vol", optionsHandler.HandleImpliedVolBatch).Methods("POST")
	r.HandleFunc("/api/v1/batch/boundary", optionsHandler.HandleBoundaryBatch).Methods("POST")

	// Start server
	fmt.Printf("🌐 Server starting on http://localhost:%s\n", cfg.Port)
	logger.Always.Printf("🌐 Server starting on http://localhost:%s", cfg.Port)

	if err := http.ListenAndServe("0.0.0.0:"+cfg.Port, r); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
