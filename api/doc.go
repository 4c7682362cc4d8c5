// Package api provides the HTTP surface of the game server.
//
// Endpoints:
//
// Health:
//   - GET /healthz - Liveness probe, no token needed
//
// Caro:
//   - GET /api/caro/config - Rules new matches are created with
//   - GET /api/caro/history?page=1&size=10 - The caller's matches, newest first
//
// Line98:
//   - GET /api/line98/config - Rules new games are created with
//   - POST /api/line98/play - Create or resume the caller's game, returns {matchId}
//   - GET /api/line98/{id} - Config, board and score of an unfinished game the caller owns
//   - GET /api/line98/history?page=1&size=10 - The caller's games, newest first
//
// WebSocket:
//   - /ws/caro and /ws/line98 - Push channels, see package websocket
//
// Authentication:
//
// Every /api route requires an access token, sent as a bearer Authorization
// header or a token query parameter. A missing or invalid token gets 401
// {"error": "unauthorized"}; an expired one gets 401 {"error": "token_expired"}.
//
// Errors:
//
// Failures are JSON objects of the form {"error": "message"}. Not found maps
// to 404, validation to 400 and conflicts (busy session, game in progress)
// to 409.
package api
