// Package service holds the shared game types and the gateway logic for
// Caro and Line98.
//
// The service package implements:
//   - Domain types: games, participants, Caro and Line98 sessions, pages
//   - The error classes every layer wraps and classifies with errors.Is
//   - The collaborator interfaces (storage, tokens, push channel, supervisors)
//   - CaroService: authentication, matchmaking, join, moves, turn timeouts
//   - Line98Service: play, join, moves, help, cancel and history
//
// Architecture:
//
// The service layer sits between the transports (websocket, REST, MCP) and
// the supervisors in package session. Supervisors own session state and
// locks; the gateways decide who is told what. Server events are named
// "<namespace>:<event>", for example "caro:state" or "line98:game.over".
//
// Usage:
//
//	caroSvc := service.NewCaroService(caros, queue, directory.New(), clock, verifier, store, 3*time.Second)
//	queue.SetPairedHandler(caroSvc.OnPaired)
//	caroSvc.SetEmitter(hub)
//
// Error Handling:
//
// Rule violations reach the client as an "error" push with a message and
// never close the connection. An expired token is reported with
// "token.expired" and the connection is closed.
package service
