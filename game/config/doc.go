// Package config loads the rule configuration of each game and the process
// settings of the server.
//
// Rule Files:
//
// The rules live as JSON files in the configs directory:
//   - caro.json: board size, win condition, player symbols and turn time limit
//   - line98.json: board size, colours, spawn counts, line length, help and scoring
//
// A missing file means the built-in defaults. A file only needs the fields it
// changes; everything else keeps its default value. Rules are validated on
// load and cached until RefreshCache.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//	caroRules, _ := manager.Caro()
//
// Process Settings:
//
// Server is parsed from BOARDGAMES_* environment variables (a .env file is
// loaded first by the command). See LoadServer.
package config
