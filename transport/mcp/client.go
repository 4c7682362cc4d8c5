package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/boardgames/game/caro"
	"github.com/wricardo/boardgames/game/line98"
	"github.com/wricardo/boardgames/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

type tokenKey struct{}

// WithToken makes tool calls handled under ctx use token instead of the
// client's own token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// NewClient creates a new MCP client that calls the REST API with token
func NewClient(baseURL, token string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Board Games",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Board Games - MCP Interface

This is a thin client that proxies all requests to the REST API server.
Real-time play (Caro moves, Line98 moves) happens over the websocket
channels; these tools cover rules, history and Line98 game setup.

AVAILABLE TOOLS:
- caro_config: Rules for new Caro matches
- caro_history: Your Caro matches, newest first
- line98_config: Rules for new Line98 games
- line98_play: Create or resume your Line98 game and get its match id
- line98_game: Board, next colours and score of your running Line98 game
- line98_history: Your Line98 games, newest first
- game_rules: How both games are played`),
	)

	// Register all tools
	c.registerTools()
}

func pagingProperties() map[string]interface{} {
	return map[string]interface{}{
		"page": map[string]interface{}{
			"type":        "number",
			"description": "Page number, starting at 1 (default 1)",
		},
		"size": map[string]interface{}{
			"type":        "number",
			"description": "Items per page, 1-100 (default 10)",
		},
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	empty := mcp.ToolInputSchema{Type: "object", Properties: map[string]interface{}{}}

	// Caro
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "caro_config",
		Description: "Get the rules new Caro matches are created with",
		InputSchema: empty,
	}, c.handleCaroConfig)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "caro_history",
		Description: "List your Caro matches, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: pagingProperties(),
		},
	}, c.handleCaroHistory)

	// Line98
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "line98_config",
		Description: "Get the rules new Line98 games are created with",
		InputSchema: empty,
	}, c.handleLine98Config)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "line98_play",
		Description: "Create a Line98 game, or resume the one you already have, and return its match id",
		InputSchema: empty,
	}, c.handleLine98Play)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "line98_game",
		Description: "Show the board, next colours and score of one of your running Line98 games",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": map[string]interface{}{
					"type":        "number",
					"description": "Match id returned by line98_play",
				},
			},
			Required: []string{"match_id"},
		},
	}, c.handleLine98Game)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "line98_history",
		Description: "List your Line98 games, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: pagingProperties(),
		},
	}, c.handleLine98History)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_rules",
		Description: "Explain how Caro and Line98 are played",
		InputSchema: empty,
	}, c.handleGameRules)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// apiCall makes an HTTP call to the REST API
func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := c.token
	if t, ok := ctx.Value(tokenKey{}).(string); ok && t != "" {
		token = t
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func pageQuery(args map[string]interface{}) string {
	params := "?"
	if page, ok := args["page"].(float64); ok {
		params += fmt.Sprintf("page=%d&", int(page))
	}
	if size, ok := args["size"].(float64); ok {
		params += fmt.Sprintf("size=%d&", int(size))
	}
	return strings.TrimRight(params, "?&")
}

// Tool handlers

func (c *Client) handleCaroConfig(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var cfg caro.Config
	if err := c.apiCall(ctx, "GET", "/api/caro/config", nil, &cfg); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatCaroConfig(cfg)), nil
}

func (c *Client) handleCaroHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var page service.PageResult[*service.CaroSession]
	if err := c.apiCall(ctx, "GET", "/api/caro/history"+pageQuery(arguments(request)), nil, &page); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatCaroHistory(page)), nil
}

func (c *Client) handleLine98Config(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var cfg line98.Config
	if err := c.apiCall(ctx, "GET", "/api/line98/config", nil, &cfg); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatLine98Config(cfg)), nil
}

func (c *Client) handleLine98Play(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		MatchID int64 `json:"matchId"`
	}
	if err := c.apiCall(ctx, "POST", "/api/line98/play", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Line98 match %d is ready.\nConnect to /ws/line98 and send {\"event\":\"join\",\"data\":{\"matchId\":%d}} to play.",
		resp.MatchID, resp.MatchID)), nil
}

func (c *Client) handleLine98Game(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	matchID, ok := arguments(request)["match_id"].(float64)
	if !ok {
		return mcp.NewToolResultError("match_id is required"), nil
	}

	var sess service.Line98Session
	if err := c.apiCall(ctx, "GET", fmt.Sprintf("/api/line98/%d", int64(matchID)), nil, &sess); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatLine98Game(&sess)), nil
}

func (c *Client) handleLine98History(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var page service.PageResult[*service.Line98Session]
	if err := c.apiCall(ctx, "GET", "/api/line98/history"+pageQuery(arguments(request)), nil, &page); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatLine98History(page)), nil
}

func (c *Client) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(`CARO
Two players take turns placing X and O on a square board (15x15 by default).
The first to complete an unbroken line of five (horizontal, vertical or
diagonal) wins. A full board with no line is a draw. Each turn has a time
limit; the player on turn loses when it runs out.

LINE98
Move one ball per turn to an empty cell reachable through empty cells
(up, down, left, right). Lining up five or more balls of one colour in any
direction clears them and scores points, and no new balls appear that turn.
Any other move drops the three announced colours at random empty cells.
The game ends when the board is full or empty. A limited number of hints
is available.`), nil
}

// Formatting helpers

func formatCaroConfig(cfg caro.Config) string {
	return fmt.Sprintf("Caro rules\n  Board: %dx%d\n  Win: %d in a row\n  Symbols: %v\n  Turn limit: %ds",
		cfg.Size, cfg.Size, cfg.WinCondition, cfg.PlayerSymbols, cfg.TimeLimit)
}

func formatLine98Config(cfg line98.Config) string {
	help := "disabled"
	if cfg.AllowHelp {
		help = fmt.Sprintf("%d per game", cfg.MaxHelp)
	}
	return fmt.Sprintf("Line98 rules\n  Board: %dx%d\n  Colours: %d\n  Start balls: %d\n  Balls per turn: %d\n  Line length: %d\n  Points per ball: %d\n  Hints: %s",
		cfg.Size, cfg.Size, cfg.Colors, cfg.InitialBalls, cfg.PerTurnBalls, cfg.MinLineLength, cfg.PointFactor, help)
}

func formatCaroHistory(page service.PageResult[*service.CaroSession]) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Caro history (page %d of %d, %d matches)\n", page.Page, page.TotalPages, page.Total))
	if len(page.Data) == 0 {
		sb.WriteString("  No matches yet\n")
	}
	for _, s := range page.Data {
		status := "in progress"
		if s.Finished {
			status = string(s.EndReason)
			if s.Winner != nil {
				status += fmt.Sprintf(", winner %d", *s.Winner)
			}
		}
		var players []string
		for _, p := range s.State.Players {
			players = append(players, fmt.Sprintf("%d(%s)", p.ID, p.Symbol))
		}
		sb.WriteString(fmt.Sprintf("  #%d %s - %s - %s\n",
			s.ID, strings.Join(players, " vs "), status, s.CreatedAt.Format(time.RFC3339)))
	}
	return sb.String()
}

func formatLine98History(page service.PageResult[*service.Line98Session]) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Line98 history (page %d of %d, %d games)\n", page.Page, page.TotalPages, page.Total))
	if len(page.Data) == 0 {
		sb.WriteString("  No games yet\n")
	}
	for _, s := range page.Data {
		status := "in progress"
		if s.Finished {
			status = "finished"
		}
		sb.WriteString(fmt.Sprintf("  #%d score %d - %s - %s\n", s.ID, s.Score, status, s.CreatedAt.Format(time.RFC3339)))
	}
	return sb.String()
}

// formatLine98Game draws the board with one digit per ball colour and '.'
// for empty cells. Rows are y, columns are x.
func formatLine98Game(s *service.Line98Session) string {
	size := s.Config.Size
	grid := make([][]byte, size)
	for y := range grid {
		grid[y] = bytes.Repeat([]byte{'.'}, size)
	}
	for _, b := range s.State.Balls {
		if b.X >= 0 && b.X < size && b.Y >= 0 && b.Y < size {
			grid[b.Y][b.X] = byte('0' + b.Color%10)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Line98 match %d\n", s.ID))
	sb.WriteString(fmt.Sprintf("Score: %d | Next: %v | Hints left: %d\n\n", s.Score, s.State.NextColors, s.State.HelpRemaining))
	sb.WriteString("   ")
	for x := 0; x < size; x++ {
		sb.WriteString(fmt.Sprintf("%d", x%10))
	}
	sb.WriteString("\n")
	for y, row := range grid {
		sb.WriteString(fmt.Sprintf("%2d %s\n", y, row))
	}
	return sb.String()
}
