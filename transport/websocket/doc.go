// Package websocket provides the real-time push channel for the game
// namespaces.
//
// Each namespace (caro, line98) gets its own Hub. The hub upgrades the HTTP
// request, assigns the connection a random id and hands it to a Handler,
// which authenticates it and from then on receives its events.
//
// Message Protocol:
//
// Every frame in either direction is one JSON envelope:
//
//	{"event": "move", "data": {"matchId": 12, "row": 7, "col": 7}}
//
// Server events carry the namespace prefix, e.g. "caro:state". The access
// token is read from the token query parameter or a bearer Authorization
// header.
//
// Usage:
//
//	hub := websocket.NewHub("caro", caroService)
//	caroService.SetEmitter(hub)
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws/caro", hub.ServeWS)
//
// Connection Lifecycle:
//
// 1. Client connects with its token
// 2. Connection registered with the hub
// 3. Handler.Connect authenticates it; a rejected client gets its error push and is closed
// 4. Client events are delivered to Handler.Message in order
// 5. Disconnection triggers Handler.Disconnect
//
// A client that stops reading is dropped once its send buffer fills up.
package websocket
