package main

import (
	"context"
	"fmt"
	"log"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/albertbausili/velox/internal/config"
	"github.com/albertbausili/velox/pkg/velox"
)

var (
	configPath    string
	listenAddr    string
	docRoot       string
	metricsListen string
	tlsCert       string
	tlsKey        string
	engine        string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Start the server and serve files from the document root.

Settings come from an optional YAML config file; flags override the file.
When --metrics-listen is set, Prometheus metrics are exposed over HTTP on
that address at /metrics.`,
	Example: `  # Serve the current directory on the default address
  velox serve

  # Serve a directory with a config file
  velox serve --config velox.yaml --docroot ./public

  # Terminate TLS with a single certificate
  velox serve --tls-cert cert.pem --tls-key key.pem --listen :8443`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (overrides config)")
	serveCmd.Flags().StringVar(&docRoot, "docroot", "", "Document root to serve files from (default \".\")")
	serveCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Address for the Prometheus /metrics endpoint (disabled if empty)")
	serveCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serveCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS private key file")
	serveCmd.Flags().StringVar(&engine, "engine", "", "Connection engine: blocking or eventloop")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := velox.DefaultConfig()
	root := "."
	metricsAddr := ""

	if configPath != "" {
		file, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg, err = file.ServerConfig()
		if err != nil {
			return err
		}
		if file.DocRoot != "" {
			root = file.DocRoot
		}
		metricsAddr = file.MetricsListen
	}

	if listenAddr != "" {
		cfg.Addr = listenAddr
	}
	if engine != "" {
		cfg.Engine = engine
	}
	if docRoot != "" {
		root = docRoot
	}
	if metricsListen != "" {
		metricsAddr = metricsListen
	}
	if (tlsCert != "") != (tlsKey != "") {
		return fmt.Errorf("both --tls-cert and --tls-key must be provided together")
	}
	if tlsCert != "" {
		cfg.TLS = velox.TLSConfig{Enabled: true, CertFile: tlsCert, KeyFile: tlsKey}
	}

	cfg.Logger = log.New(os.Stderr, "velox ", log.LstdFlags)

	if err := cfg.Validate(); err != nil {
		return err
	}

	router := velox.NewRouter()
	router.Use(velox.Recovery(), velox.RequestID(), velox.Logger())
	if metricsAddr != "" {
		router.Use(velox.Prometheus())
	}
	router.GET("/health", func(ctx *velox.Context) error {
		return ctx.String(200, "ok")
	})
	router.NotFound(docRootHandler(root))

	srv := velox.New(cfg)
	srv.Handler(router)

	if err := srv.Start(); err != nil {
		return err
	}
	cfg.Logger.Printf("listening on %s (engine=%s)", srv.Addr(), cfg.Engine)

	var metricsSrv *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				cfg.Logger.Printf("metrics listener: %v", err)
			}
		}()
		cfg.Logger.Printf("metrics on http://%s/metrics", metricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	cfg.Logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return srv.Stop(shutdownCtx)
}

// docRootHandler serves files beneath root. The request target is cleaned
// before use so it cannot escape the root.
func docRootHandler(root string) velox.Handler {
	return velox.HandlerFunc(func(ctx *velox.Context) error {
		if ctx.Method() != "GET" {
			return ctx.Error(405, "Method Not Allowed")
		}

		target := path.Clean("/" + ctx.Path())
		if target == "/" {
			target = "/index.html"
		}
		name := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(target, "/")))

		data, err := os.ReadFile(name)
		if err != nil {
			if os.IsNotExist(err) {
				return ctx.Error(404, "Not Found")
			}
			if os.IsPermission(err) {
				return ctx.Error(403, "Forbidden")
			}
			return err
		}

		contentType := mime.TypeByExtension(filepath.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return ctx.Bytes(200, contentType, data)
	})
}
