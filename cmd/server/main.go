package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/example/house-heist/internal/audit"
	"github.com/example/house-heist/internal/auth"
	"github.com/example/house-heist/internal/config"
	"github.com/example/house-heist/internal/game"
	srv "github.com/example/house-heist/internal/server"
)

func main() {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	var (
		httpPort      = flag.String("http-port", "8080", "HTTP port")
		httpsPort     = flag.String("https-port", "8443", "HTTPS port")
		certFile      = flag.String("cert", "", "Path to certificate file")
		keyFile       = flag.String("key", "", "Path to private key file")
		tlsOnly       = flag.Bool("tls-only", false, "Only serve HTTPS")
		rulesPath     = flag.String("rules", envOr("RULES_PATH", "configs/rules.yaml"), "Path to rules/config YAML")
		dataDir       = flag.String("data", "", "Data directory (overrides server.data_dir)")
		disableDB     = flag.Bool("disable-db", false, "Do not keep the SQLite audit index")
		operatorToken = flag.String("operator-token", "", "Print an operator API token for this name and exit")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tokens, err := auth.NewTokenConfig()
	if err != nil {
		logger.Fatal(err)
	}
	if *operatorToken != "" {
		tok, err := tokens.IssueOperatorToken(*operatorToken)
		if err != nil {
			logger.Fatal(err)
		}
		fmt.Println(tok)
		return
	}

	cfg, err := loadConfig(*rulesPath, logger)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if *dataDir != "" {
		cfg.Server.DataDir = *dataDir
	}
	if *disableDB {
		cfg.Server.AuditIndex = false
	}

	recorder, err := openAudit(cfg.Server)
	if err != nil {
		logger.Fatalf("audit: %v", err)
	}
	defer recorder.Close()

	world, err := game.New(cfg.Rules,
		game.WithLogger(log.New(os.Stdout, "[world] ", log.LstdFlags|log.Lmicroseconds)),
		game.WithAuthenticator(tokens),
		game.WithAuditSink(recorder),
	)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dispatch := srv.NewDispatcher(cfg.Server.OutboxSize, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
	authority := game.NewAuthority(world, dispatch, nil)
	go func() {
		if err := authority.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world authority stopped: %v", err)
		}
	}()

	gs, err := srv.NewGameServer(authority, dispatch, recorder, cfg.Server, log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("server: %v", err)
	}

	r := mux.NewRouter()
	r.Use(cors)
	addHealth(r, logger)

	// Operator routes require an operator bearer token
	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(tokens.AuthMiddleware)
	gs.RegisterRoutes(r, protected)

	certPath, keyPath := *certFile, *keyFile
	if certPath == "" || keyPath == "" {
		// Default to generated certificates relative to working directory
		certPath = "certs/server-san.crt"
		keyPath = "certs/server-san.key"
	}

	errc := make(chan error, 2)
	if missing := missingFile(certPath, keyPath); missing != "" {
		logger.Printf("TLS file not found at %s", missing)
		if *tlsOnly {
			logger.Fatal("Exiting due to missing certificates in TLS-only mode")
		}
		logger.Printf("Falling back to HTTP only on port %s", *httpPort)
		serve(ctx, errc, &http.Server{Addr: ":" + *httpPort, Handler: r}, "", "")
	} else {
		httpsServer := &http.Server{
			Addr:    ":" + *httpsPort,
			Handler: r,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
				CipherSuites: []uint16{
					tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
					tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
					tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
				},
			},
		}
		logger.Printf("house heist (HTTPS) listening on %s", httpsServer.Addr)
		serve(ctx, errc, httpsServer, certPath, keyPath)

		if !*tlsOnly {
			logger.Printf("house heist (HTTP->HTTPS redirect) listening on :%s", *httpPort)
			serve(ctx, errc, &http.Server{Addr: ":" + *httpPort, Handler: redirectRouter(*httpsPort, logger)}, "", "")
		}
	}

	select {
	case <-ctx.Done():
		logger.Printf("shutting down")
	case err := <-errc:
		logger.Printf("listener failed: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loadConfig reads path, falling back to defaults when the file is absent.
func loadConfig(path string, logger *log.Logger) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Printf("no config at %s, using defaults", path)
		return config.Defaults(), nil
	}
	return cfg, err
}

func openAudit(cfg config.Server) (*audit.Recorder, error) {
	auditLog := log.New(os.Stdout, "[audit] ", log.LstdFlags|log.Lmicroseconds)
	var opts []audit.Option
	if cfg.AuditLog {
		opts = append(opts, audit.WithJournal(audit.NewJournal(filepath.Join(cfg.DataDir, "audit"))))
	}
	if cfg.AuditIndex {
		ix, err := audit.OpenIndex(filepath.Join(cfg.DataDir, "index", "audit.sqlite"), auditLog)
		if err != nil {
			return nil, err
		}
		opts = append(opts, audit.WithIndex(ix))
	}
	return audit.NewRecorder(auditLog, opts...), nil
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func addHealth(r *mux.Router, logger *log.Logger) {
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		logger.Printf("Health check requested from %s", r.RemoteAddr)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	r.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	}).Methods("GET")
}

// redirectRouter answers health checks on plain HTTP and sends everything
// else to HTTPS.
func redirectRouter(httpsPort string, logger *log.Logger) *mux.Router {
	r := mux.NewRouter()
	addHealth(r, logger)
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpsURL := "https://" + r.Host
		if httpsPort != "443" {
			httpsURL += ":" + httpsPort
		}
		http.Redirect(w, r, httpsURL+r.RequestURI, http.StatusMovedPermanently)
	})
	return r
}

func missingFile(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p
		}
	}
	return ""
}

// serve runs s until ctx ends; listener errors are reported on errc.
func serve(ctx context.Context, errc chan<- error, s *http.Server, certPath, keyPath string) {
	go func() {
		var err error
		if certPath != "" {
			err = s.ListenAndServeTLS(certPath, keyPath)
		} else {
			err = s.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go func() {
		<-ctx.Done()
		_ = s.Shutdown(context.Background())
	}()
}
