// Command ccmd runs the credible commitment machine as a standalone
// process: one enclave, one service, exposed over both a line-framed TCP
// socket and an HTTP compatibility endpoint.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/credible-commitment-machine/internal/config"
	platformos "github.com/R3E-Network/credible-commitment-machine/platform/os"
	"github.com/R3E-Network/credible-commitment-machine/rpcserver"
	"github.com/R3E-Network/credible-commitment-machine/services/base"
	"github.com/R3E-Network/credible-commitment-machine/services/ccm"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgFile := config.LoadEnclaveConfigOrDefault()
	enclaveConfig, err := cfgFile.ToEnclaveConfig()
	if err != nil {
		log.Fatalf("invalid enclave config: %v", err)
	}

	metrics := platformos.NewPrometheusMetrics()
	serviceOS := platformos.NewHost("ccm", platformos.WithMetrics(metrics))
	enclaveID := "ccm-" + uuid.NewString()

	service, err := ccm.New(serviceOS, enclaveID, enclaveConfig)
	if err != nil {
		log.Fatalf("failed to create ccm service: %v", err)
	}

	registry := base.NewRegistry()
	if err := registry.Register(service); err != nil {
		log.Fatalf("failed to register ccm service: %v", err)
	}
	if err := registry.StartAll(ctx); err != nil {
		log.Fatalf("failed to start ccm service: %v", err)
	}

	handler := rpcserver.NewHandler(service)
	logger := serviceOS.Logger()

	socketServer := rpcserver.NewSocketServer(cfgFile.ListenAddress, handler, logger)
	go func() {
		if err := socketServer.Serve(ctx); err != nil {
			log.Fatalf("socket server error: %v", err)
		}
	}()

	httpServer := rpcserver.NewHTTPServer(cfgFile.HTTPAddress, handler, logger, metrics.Handler())
	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			logger.Info("http server stopped", "error", err.Error())
		}
	}()

	logger.Info("ccm listening", "socket", cfgFile.ListenAddress, "http", cfgFile.HTTPAddress, "enclaveId", enclaveID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", "error", err.Error())
	}
	if err := socketServer.Close(); err != nil {
		logger.Warn("socket shutdown error", "error", err.Error())
	}
	if err := registry.StopAll(shutdownCtx); err != nil {
		logger.Warn("service stop error", "error", err.Error())
	}

	logger.Info("shutdown complete")
}
