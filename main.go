// Command boardgames runs the Caro and Line98 game server.
//
// Subcommands:
//  1. "serve" (default) – runs the HTTP server exposing the REST API, the
//     /ws/caro and /ws/line98 websocket channels, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server against a running API, starting an
//     internal one if none answers
//  3. "token" – issues an access token for local testing
//  4. "version" – prints version information
//
// Settings come from BOARDGAMES_* environment variables (a .env file is
// loaded when present) and can be overridden with flags.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/boardgames/api"
	"github.com/wricardo/boardgames/auth"
	"github.com/wricardo/boardgames/game/config"
	"github.com/wricardo/boardgames/game/directory"
	"github.com/wricardo/boardgames/game/line98"
	"github.com/wricardo/boardgames/game/matchmaking"
	"github.com/wricardo/boardgames/game/service"
	"github.com/wricardo/boardgames/game/session"
	"github.com/wricardo/boardgames/game/turnclock"
	"github.com/wricardo/boardgames/storage/sqlite"
	"github.com/wricardo/boardgames/transport/mcp"
	"github.com/wricardo/boardgames/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Board Games Server"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// newCommand builds the CLI. serve runs when no subcommand is given.
func newCommand() *cli.Command {
	serve := serveCommand()
	return &cli.Command{
		Name:    "boardgames",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			// Setup logging
			if cmd.Bool("debug") {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			} else {
				log.SetFlags(log.LstdFlags)
			}
			return ctx, nil
		},
		DefaultCommand: serve.Name,
		Commands: []*cli.Command{
			serve,
			mcpCommand(),
			tokenCommand(),
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("%s v%s\n", AppName, Version)
					return nil
				},
			},
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"server", "http"},
		Usage:   "Run the HTTP server with REST API, websocket channels and MCP endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port"},
			&cli.StringFlag{Name: "db", Usage: "SQLite database file"},
			&cli.StringFlag{Name: "config-dir", Usage: "Directory containing caro.json and line98.json"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadServerConfig(cmd)
			if err != nil {
				return err
			}
			return runHTTPServer(ctx, cfg)
		},
	}
}

// loadServerConfig reads the environment and applies the flags that were
// set explicitly.
func loadServerConfig(cmd *cli.Command) (config.Server, error) {
	cfg, err := config.LoadServer()
	if err != nil {
		return cfg, err
	}
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("db") {
		cfg.DBPath = cmd.String("db")
	}
	if cmd.IsSet("config-dir") {
		cfg.ConfigDir = cmd.String("config-dir")
	}
	if cmd.IsSet("ngrok") {
		cfg.NgrokEnabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.NgrokDomain = cmd.String("ngrok-domain")
	}
	if cmd.Bool("debug") {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// application is the wired server: storage, managers, gateways and the
// HTTP handler that serves them.
type application struct {
	store    *sqlite.Store
	caroHub  *websocket.Hub
	lineHub  *websocket.Hub
	handler  http.Handler
	caros    *session.CaroManager
	lines    *session.Line98Manager
	verifier *auth.Verifier
}

// newApplication wires every component from cfg. The caller owns Close.
func newApplication(cfg config.Server) (*application, error) {
	configManager, err := config.NewManager(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	caroRules, err := configManager.Caro()
	if err != nil {
		return nil, err
	}
	lineRules, err := configManager.Line98()
	if err != nil {
		return nil, err
	}

	verifier, err := auth.NewVerifier(cfg.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	clock := turnclock.New()
	caros := session.NewCaroManager(store, store, clock, caroRules)
	lines := session.NewLine98Manager(store, store, line98.NewEngine(lineRules, line98.NewRandom()))

	caroDir := directory.New()
	queue := matchmaking.New(caros, caroDir)
	caroSvc := service.NewCaroService(caros, queue, caroDir, clock, verifier, store, cfg.TurnBuffer)
	queue.SetPairedHandler(caroSvc.OnPaired)
	lineSvc := service.NewLine98Service(lines, directory.New(), verifier)

	caroHub := websocket.NewHub(service.CaroNamespace, caroSvc)
	caroSvc.SetEmitter(caroHub)
	lineHub := websocket.NewHub(service.Line98Namespace, lineSvc)
	lineSvc.SetEmitter(lineHub)

	apiServer := api.NewServer(api.Options{
		Caro:     caroSvc,
		Line98:   lineSvc,
		Verifier: verifier,
		CaroWS:   caroHub.ServeWS,
		Line98WS: lineHub.ServeWS,
	})

	// Create MCP client for /mcp endpoint; callers authenticate with their
	// own bearer token
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", cfg.Addr()), "")

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient))

	return &application{
		store:    store,
		caroHub:  caroHub,
		lineHub:  lineHub,
		handler:  mainRouter,
		caros:    caros,
		lines:    lines,
		verifier: verifier,
	}, nil
}

// run starts the websocket hubs. They stop when ctx is cancelled.
func (a *application) run(ctx context.Context) {
	go a.caroHub.Run(ctx)
	go a.lineHub.Run(ctx)
}

// Close releases the database.
func (a *application) Close() error {
	return a.store.Close()
}

// mcpHandler serves MCP JSON-RPC messages over plain HTTP POST.
func mcpHandler(mcpClient *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		ctx := mcp.WithToken(r.Context(), websocket.TokenFromRequest(r))
		response := mcpClient.GetMCPServer().HandleMessage(ctx, body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// runHTTPServer serves the application until SIGINT or SIGTERM. If ngrok is
// enabled it also provisions a public tunnel.
func runHTTPServer(parent context.Context, cfg config.Server) error {
	app, err := newApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer app.Close()

	// Setup graceful shutdown context
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	app.run(ctx)

	addr := cfg.Addr()
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     app.handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Handle shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("Starting %s v%s", AppName, Version)
		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws/caro, ws://%s/ws/line98", addr, addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cfg.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, app.handler)
		}()
	}

	// Wait for shutdown signal
	select {
	case sig := <-stop:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case err = <-serveErr:
		log.Printf("HTTP server failed: %v", err)
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx is done.
func runNgrok(ctx context.Context, cfg config.Server, handler http.Handler) {
	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		log.Printf("Using custom ngrok domain: %s", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuthToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:    "mcp",
		Aliases: []string{"stdio-mcp", "mcp-stdio"},
		Usage:   "Run an MCP stdio server backed by the REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-url", Value: "http://localhost:8080", Usage: "API server to proxy to"},
			&cli.StringFlag{Name: "token", Sources: cli.EnvVars("BOARDGAMES_MCP_TOKEN"), Usage: "Access token sent with every call"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runStdioMCP(ctx, cmd.String("base-url"), cmd.String("token"))
		},
	}
}

// runStdioMCP runs an MCP stdio server. It uses the API at externalURL when
// one answers; otherwise it starts an internal server on a random loopback
// port and targets that.
func runStdioMCP(ctx context.Context, externalURL, token string) error {
	baseURL := externalURL

	log.Printf("Checking for external API server at %s...", externalURL)
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/healthz")
	if err == nil {
		resp.Body.Close()
	}
	if err == nil && resp.StatusCode < 500 {
		log.Printf("External API server found at %s, using it for MCP", externalURL)
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		cfg, err := config.LoadServer()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		cfg.Host = "127.0.0.1"
		cfg.Port = listener.Addr().(*net.TCPAddr).Port

		app, err := newApplication(cfg)
		if err != nil {
			listener.Close()
			return err
		}
		defer app.Close()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		app.run(ctx)

		httpServer := &http.Server{Handler: app.handler}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Close()

		baseURL = fmt.Sprintf("http://%s", cfg.Addr())
		log.Printf("Internal HTTP server for MCP stdio on %s", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL, token)
	log.Println("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue an access token signed with BOARDGAMES_TOKEN_SECRET",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "player", Required: true, Usage: "Player id"},
			&cli.StringFlag{Name: "username", Usage: "Display name"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "Token lifetime"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.LoadServer()
			if err != nil {
				return err
			}
			token, err := issueToken(cfg.TokenSecret, cmd.Int64("player"), cmd.String("username"), cmd.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

// issueToken signs a token for playerID with a fresh session id.
func issueToken(secret string, playerID int64, username string, ttl time.Duration) (string, error) {
	issuer, err := auth.NewIssuer(secret, ttl)
	if err != nil {
		return "", err
	}
	return issuer.Issue(playerID, username, uuid.NewString())
}
