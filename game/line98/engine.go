package line98

import (
	"github.com/wricardo/boardgames/game/board"
)

// Engine applies the Line98 rules for one configuration.
type Engine struct {
	cfg Config
	rnd Random
}

// NewEngine creates an engine. rnd must be safe for concurrent use when the
// engine is shared.
func NewEngine(cfg Config, rnd Random) *Engine {
	if rnd == nil {
		rnd = NewRandom()
	}
	return &Engine{cfg: cfg, rnd: rnd}
}

// Config returns the engine's rule configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// grid holds ball colours indexed as [x][y]; zero means empty.
type grid [][]int

func (e *Engine) gridOf(balls []Ball) grid {
	g := make(grid, e.cfg.Size)
	for i := range g {
		g[i] = make([]int, e.cfg.Size)
	}
	for _, b := range balls {
		if board.InBounds(b.Point(), e.cfg.Size) {
			g[b.X][b.Y] = b.Color
		}
	}
	return g
}

func (g grid) at(p board.Point) int {
	return g[p.X][p.Y]
}

func (g grid) set(p board.Point, color int) {
	g[p.X][p.Y] = color
}

func (g grid) blocked(p board.Point) bool {
	return g[p.X][p.Y] != 0
}

func (g grid) free() []board.Point {
	var cells []board.Point
	for x := range g {
		for y := range g[x] {
			if g[x][y] == 0 {
				cells = append(cells, board.Point{X: x, Y: y})
			}
		}
	}
	return cells
}

// NewState returns a fresh board with the initial balls and the first
// announced colours.
func (e *Engine) NewState() State {
	g := e.gridOf(nil)
	st := State{
		Balls:      e.spawn(g, e.rollColors(e.cfg.InitialBalls)),
		NextColors: e.rollColors(e.cfg.PerTurnBalls),
	}
	if e.cfg.AllowHelp {
		st.HelpRemaining = e.cfg.MaxHelp
	}
	return st
}

func (e *Engine) rollColors(n int) []int {
	colors := make([]int, n)
	for i := range colors {
		colors[i] = 1 + e.rnd.IntN(e.cfg.Colors)
	}
	return colors
}

// spawn places one ball of each colour on distinct random free cells. It
// stops early when the board fills up.
func (e *Engine) spawn(g grid, colors []int) []Ball {
	free := g.free()
	added := make([]Ball, 0, len(colors))
	for _, color := range colors {
		if len(free) == 0 {
			break
		}
		i := e.rnd.IntN(len(free))
		p := free[i]
		free[i] = free[len(free)-1]
		free = free[:len(free)-1]

		g.set(p, color)
		added = append(added, Ball{X: p.X, Y: p.Y, Color: color})
	}
	return added
}

// CanMove validates a move without applying it.
func (e *Engine) CanMove(st State, from, to board.Point) error {
	if st.GameOver {
		return ErrGameOver
	}
	return e.validate(e.gridOf(st.Balls), from, to)
}

func (e *Engine) validate(g grid, from, to board.Point) error {
	size := e.cfg.Size
	if !board.InBounds(from, size) || !board.InBounds(to, size) {
		return ErrOutOfBounds
	}
	if from == to {
		return ErrSamePosition
	}
	if !g.blocked(from) {
		return ErrNoBall
	}
	if g.blocked(to) {
		return ErrOccupied
	}
	if !board.HasPath(from, to, size, g.blocked) {
		return ErrNoPath
	}
	return nil
}

// Move relocates the ball at from to to. A move that completes one or more
// lines through the destination clears them and scores without spawning.
// Any other move spawns the announced colours and rolls new ones. The
// returned event carries the points earned by this move only.
func (e *Engine) Move(st *State, from, to board.Point) (MoveEvent, error) {
	if st.GameOver {
		return MoveEvent{}, ErrGameOver
	}

	g := e.gridOf(st.Balls)
	if err := e.validate(g, from, to); err != nil {
		return MoveEvent{}, err
	}

	color := g.at(from)
	g.set(from, 0)
	g.set(to, color)
	for i := range st.Balls {
		if st.Balls[i].Point() == from {
			st.Balls[i].X, st.Balls[i].Y = to.X, to.Y
			break
		}
	}

	ev := MoveEvent{MoveFrom: &from, MoveTo: &to}

	removed := e.lineThrough(g, to, color)
	if len(removed) > 0 {
		st.Balls = without(st.Balls, removed)
		ev.Removed = removed
		ev.Points = len(removed) * e.cfg.PointFactor
		return ev, nil
	}

	ev.Added = e.spawn(g, st.NextColors)
	st.Balls = append(st.Balls, ev.Added...)
	st.NextColors = e.rollColors(e.cfg.PerTurnBalls)
	ev.NextColors = st.NextColors

	return ev, nil
}

// CheckAfterAdd rescans every ball in order and clears any qualifying line.
// Balls already cleared earlier in the scan are skipped.
func (e *Engine) CheckAfterAdd(st *State) MoveEvent {
	g := e.gridOf(st.Balls)

	var removed []Ball
	for _, b := range st.Balls {
		p := b.Point()
		if g.at(p) != b.Color {
			continue
		}
		line := e.lineThrough(g, p, b.Color)
		for _, r := range line {
			g.set(r.Point(), 0)
		}
		removed = append(removed, line...)
	}

	kept := st.Balls[:0:0]
	for _, b := range st.Balls {
		if g.at(b.Point()) == b.Color {
			kept = append(kept, b)
		}
	}
	st.Balls = kept

	return MoveEvent{
		Removed: removed,
		Points:  len(removed) * e.cfg.PointFactor,
	}
}

// lineThrough collects every ball of the given colour in a run of at least
// MinLineLength through p. The pivot is listed once even when several axes
// qualify.
func (e *Engine) lineThrough(g grid, p board.Point, color int) []Ball {
	same := func(q board.Point) bool { return g.at(q) == color }

	seen := make(map[board.Point]bool)
	var out []Ball
	for _, axis := range board.Axes {
		line := board.Line(p, axis, e.cfg.Size, same)
		if len(line) < e.cfg.MinLineLength {
			continue
		}
		for _, q := range line {
			if seen[q] {
				continue
			}
			seen[q] = true
			out = append(out, Ball{X: q.X, Y: q.Y, Color: color})
		}
	}
	return out
}

func without(balls []Ball, removed []Ball) []Ball {
	drop := make(map[board.Point]bool, len(removed))
	for _, r := range removed {
		drop[r.Point()] = true
	}
	kept := balls[:0]
	for _, b := range balls {
		if !drop[b.Point()] {
			kept = append(kept, b)
		}
	}
	return kept
}

// IsGameOver reports whether the board is empty or full, or the game was
// already ended.
func (e *Engine) IsGameOver(st State) bool {
	if st.GameOver {
		return true
	}
	n := len(st.Balls)
	return n == 0 || n >= e.cfg.Size*e.cfg.Size
}

// Help suggests a move and consumes one help. Candidate moves are listed in
// board order, each ball followed by its reachable cells in breadth-first
// order; the first candidate that completes a line is returned, otherwise a
// random candidate.
func (e *Engine) Help(st *State) (Hint, error) {
	if !e.cfg.AllowHelp {
		return Hint{}, ErrHelpDisabled
	}
	if st.HelpRemaining <= 0 {
		return Hint{}, ErrHelpExhausted
	}
	if st.GameOver {
		return Hint{}, ErrGameOver
	}

	hint, err := e.suggest(e.gridOf(st.Balls))
	if err != nil {
		return Hint{}, err
	}

	st.HelpRemaining--
	return hint, nil
}

func (e *Engine) suggest(g grid) (Hint, error) {
	size := e.cfg.Size

	var moves []Hint
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			from := board.Point{X: x, Y: y}
			if !g.blocked(from) {
				continue
			}
			for _, to := range board.Reachable(from, size, g.blocked) {
				moves = append(moves, Hint{From: from, To: to})
			}
		}
	}

	if len(moves) == 0 {
		return Hint{}, ErrNoMovesLeft
	}

	for _, m := range moves {
		color := g.at(m.From)
		g.set(m.From, 0)
		g.set(m.To, color)
		scores := e.formsLine(g, m.To, color)
		g.set(m.To, 0)
		g.set(m.From, color)
		if scores {
			return m, nil
		}
	}

	return moves[e.rnd.IntN(len(moves))], nil
}

func (e *Engine) formsLine(g grid, p board.Point, color int) bool {
	same := func(q board.Point) bool { return g.at(q) == color }
	for _, axis := range board.Axes {
		if board.RunLength(p, axis, e.cfg.Size, same) >= e.cfg.MinLineLength {
			return true
		}
	}
	return false
}
