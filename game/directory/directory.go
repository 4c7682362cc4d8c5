// Package directory maps authenticated players to their live connections
// and to the match they are currently bound to.
package directory

import (
	"errors"
	"sync"
	"time"
)

var ErrNotConnected = errors.New("player is not connected")

// Entry is the live record of a connected player.
type Entry struct {
	PlayerID int64
	ConnID   string
	JoinedAt time.Time
	MatchID  int64 // zero when no match is bound
}

// Directory is safe for concurrent use.
type Directory struct {
	mu       sync.RWMutex
	byPlayer map[int64]*Entry
	byConn   map[string]int64
	now      func() time.Time
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		byPlayer: make(map[int64]*Entry),
		byConn:   make(map[string]int64),
		now:      time.Now,
	}
}

// Bind records connID as the current connection of playerID. A reconnect
// replaces the previous connection. If connID was bound to another player,
// that player's entry is dropped.
func (d *Directory) Bind(playerID int64, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if old, ok := d.byPlayer[playerID]; ok && old.ConnID != connID {
		delete(d.byConn, old.ConnID)
	}
	if other, ok := d.byConn[connID]; ok && other != playerID {
		delete(d.byPlayer, other)
	}

	d.byPlayer[playerID] = &Entry{
		PlayerID: playerID,
		ConnID:   connID,
		JoinedAt: d.now(),
	}
	d.byConn[connID] = playerID
}

// Address returns the connection id of playerID.
func (d *Directory) Address(playerID int64) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.byPlayer[playerID]
	if !ok {
		return "", ErrNotConnected
	}
	return e.ConnID, nil
}

// Player returns the player bound to connID.
func (d *Directory) Player(connID string) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byConn[connID]
	if !ok {
		return 0, ErrNotConnected
	}
	return id, nil
}

// Connected reports whether playerID has a live connection.
func (d *Directory) Connected(playerID int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byPlayer[playerID]
	return ok
}

// SetMatch binds playerID to matchID.
func (d *Directory) SetMatch(playerID, matchID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.byPlayer[playerID]
	if !ok {
		return ErrNotConnected
	}
	e.MatchID = matchID
	return nil
}

// ActiveMatch returns the match bound to playerID, if any.
func (d *Directory) ActiveMatch(playerID int64) (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.byPlayer[playerID]
	if !ok || e.MatchID == 0 {
		return 0, false
	}
	return e.MatchID, true
}

// Lookup returns a copy of the entry for playerID.
func (d *Directory) Lookup(playerID int64) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.byPlayer[playerID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Remove drops playerID and its connection. It is a no-op for unknown players.
func (d *Directory) Remove(playerID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.byPlayer[playerID]; ok {
		delete(d.byConn, e.ConnID)
		delete(d.byPlayer, playerID)
	}
}

// RemoveConn drops whichever player is bound to connID and returns it.
// A stale connection that was already replaced by a reconnect is ignored.
func (d *Directory) RemoveConn(connID string) (int64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.byConn[connID]
	if !ok {
		return 0, false
	}
	delete(d.byConn, connID)
	delete(d.byPlayer, id)
	return id, true
}

// Len returns the number of connected players.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byPlayer)
}
