// Package mcp exposes the board game REST API as Model Context Protocol tools.
//
// The client is a thin proxy: every tool call becomes one authenticated
// HTTP request against the API server and the JSON response is rendered as
// text for the agent. Real-time play stays on the websocket channels.
//
// MCP Tools:
//   - caro_config: Caro rules for new matches
//   - caro_history: paginated Caro match history
//   - line98_config: Line98 rules for new games
//   - line98_play: create or resume a Line98 game
//   - line98_game: render the board of a running Line98 game
//   - line98_history: paginated Line98 game history
//   - game_rules: how both games are played
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer()) for local MCP clients
//   - HTTP: the API server mounts /mcp and forwards the caller's bearer
//     token with WithToken
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080", token)
//	server.ServeStdio(client.GetMCPServer())
package mcp
