// Command sump-bridged serves the SUMP3 ILA's REST API over HTTP,
// bridging the mmap register protocol implemented in mmio and ila onto
// plain net/http.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/mkevac/debugcharts"

	"github.com/amcolex/sump-surfer/httpapi"
	"github.com/amcolex/sump-surfer/ila"
	"github.com/amcolex/sump-surfer/mmio"
	"github.com/amcolex/sump-surfer/service"
)

const (
	defaultPort    = "8082"
	defaultAXIAddr = "0x43C20000"
)

func main() {
	// A single process-wide logger, threaded down into ila.Driver (command
	// failures/timeouts) and httpapi.Server (request lines), instead of
	// every component calling the bare log package.
	logger := log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lmicroseconds)

	logger.Printf("sump-bridged starting...")

	port := envOr("PORT", defaultPort)
	axiAddrStr := envOr("SUMP_AXI_ADDR", defaultAXIAddr)

	axiAddr, err := parseAddr(axiAddrStr)
	if err != nil {
		logger.Fatalf("invalid SUMP_AXI_ADDR %q: %v", axiAddrStr, err)
	}
	logger.Printf("using AXI address: 0x%08X", axiAddr)

	window, err := mmio.Create(axiAddr, 0x100)
	if err != nil {
		logger.Printf("failed to map ILA window at 0x%08X: %v", axiAddr, err)
		logger.Printf("make sure you have permission to access /dev/mem (run as root)")
		os.Exit(1)
	}
	defer window.Close()
	logger.Printf("mapped %d bytes at 0x%08X", window.Size(), window.Base())

	driver := ila.New(window, axiAddr)
	driver.Logger = logger
	svc := service.New(driver)

	apiServer := httpapi.NewServer(svc)
	apiServer.Logger = logger

	topMux := http.NewServeMux()
	topMux.Handle("/debug/charts/", http.DefaultServeMux)
	topMux.Handle("/", apiServer)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: topMux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Printf("listening on http://0.0.0.0:%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("failed to bind to :%s: %v", port, err)
		}
	}()

	<-ctx.Done()
	logger.Printf("received shutdown signal, shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("server shutdown error: %v", err)
	}

	logger.Printf("server shutdown complete")
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// parseAddr accepts either a "0x"-prefixed hex literal or a plain decimal
// string, matching SUMP_AXI_ADDR's two accepted forms.
func parseAddr(s string) (uintptr, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return uintptr(v), err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return uintptr(v), err
}
