package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/boardgames/auth"
	"github.com/wricardo/boardgames/game/config"
)

const testSecret = "main-test-secret"

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName == "" {
		t.Error("AppName should not be empty")
	}

	expectedAppName := "Board Games Server"
	if AppName != expectedAppName {
		t.Errorf("Expected app name %s, got %s", expectedAppName, AppName)
	}
}

func testServerConfig(t *testing.T) config.Server {
	t.Helper()
	return config.Server{
		Host:        "127.0.0.1",
		Port:        8080,
		DBPath:      filepath.Join(t.TempDir(), "test.db"),
		ConfigDir:   "configs",
		TokenSecret: testSecret,
		TurnBuffer:  time.Second,
	}
}

// startApplication serves a wired application on the address its config
// names, so the /mcp proxy reaches the same server.
func startApplication(t *testing.T) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	cfg := testServerConfig(t)
	cfg.Port = ln.Addr().(*net.TCPAddr).Port

	app, err := newApplication(cfg)
	if err != nil {
		ln.Close()
		t.Fatalf("Failed to initialize application: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	app.run(ctx)

	srv := httptest.NewUnstartedServer(app.handler)
	srv.Listener.Close()
	srv.Listener = ln
	srv.Start()

	t.Cleanup(func() {
		srv.Close()
		cancel()
		app.Close()
	})
	return srv
}

func TestNewApplication(t *testing.T) {
	srv := startApplication(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/api/caro/config")
	if err != nil {
		t.Fatalf("Config request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without token, got %d", resp.StatusCode)
	}

	token, err := issueToken(testSecret, 1, "alice", time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	req, _ := http.NewRequest("POST", srv.URL+"/api/line98/play", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Play request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "matchId") {
		t.Errorf("Expected matchId in response, got %s", body)
	}
}

func TestMCPEndpoint(t *testing.T) {
	srv := startApplication(t)

	token, err := issueToken(testSecret, 2, "bob", time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	payload := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"caro_config","arguments":{}}}`
	req, _ := http.NewRequest("POST", srv.URL+"/mcp", strings.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("MCP request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "15x15") {
		t.Errorf("Expected caro rules in MCP response, got %s", body)
	}

	resp, err = http.Get(srv.URL + "/mcp")
	if err != nil {
		t.Fatalf("MCP GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", resp.StatusCode)
	}
}

func TestNewApplication_InvalidConfigDir(t *testing.T) {
	cfg := testServerConfig(t)
	cfg.ConfigDir = "/non/existent/path"

	if _, err := newApplication(cfg); err == nil {
		t.Error("Expected error for non-existent config directory")
	}
}

func TestIssueToken(t *testing.T) {
	token, err := issueToken(testSecret, 42, "carol", time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}

	verifier, err := auth.NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("Failed to create verifier: %v", err)
	}
	id, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("Issued token failed verification: %v", err)
	}
	if id.PlayerID != 42 {
		t.Errorf("Expected player 42, got %d", id.PlayerID)
	}
	if id.SessionID == "" {
		t.Error("Expected a session id")
	}

	if _, err := issueToken(testSecret, 1, "x", 0); err == nil {
		t.Error("Expected error for zero ttl")
	}
}

func TestLoadServerConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("BOARDGAMES_TOKEN_SECRET", "env-secret")
	t.Setenv("BOARDGAMES_PORT", "7000")
	t.Setenv("BOARDGAMES_HOST", "example.local")

	var got config.Server
	cmd := serveCommand()
	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		var err error
		got, err = loadServerConfig(c)
		return err
	}

	if err := cmd.Run(context.Background(), []string{"serve", "--port", "9191", "--db", "other.db"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got.Port != 9191 {
		t.Errorf("Expected flag port 9191, got %d", got.Port)
	}
	if got.Host != "example.local" {
		t.Errorf("Expected env host to survive, got %s", got.Host)
	}
	if got.DBPath != "other.db" {
		t.Errorf("Expected db other.db, got %s", got.DBPath)
	}
	if got.TokenSecret != "env-secret" {
		t.Errorf("Expected env secret, got %s", got.TokenSecret)
	}
}

func TestLoadServerConfig_MissingSecret(t *testing.T) {
	t.Setenv("BOARDGAMES_TOKEN_SECRET", "")

	cmd := serveCommand()
	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		_, err := loadServerConfig(c)
		return err
	}

	if err := cmd.Run(context.Background(), []string{"serve"}); err == nil {
		t.Error("Expected error without a token secret")
	}
}

func TestVersionCommand(t *testing.T) {
	if err := newCommand().Run(context.Background(), []string{"boardgames", "version"}); err != nil {
		t.Errorf("version command failed: %v", err)
	}
}
