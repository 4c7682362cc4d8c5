package board

// Point is a cell coordinate on a square grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p shifted by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// Neg returns the opposite direction.
func (p Point) Neg() Point {
	return Point{X: -p.X, Y: -p.Y}
}

// Axes are the four line directions. Each axis is walked both ways.
var Axes = [4]Point{
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: 1, Y: 1},
	{X: 1, Y: -1},
}

// Neighbors are the 4-connected steps used for path finding.
var Neighbors = [4]Point{
	{X: 1, Y: 0},
	{X: -1, Y: 0},
	{X: 0, Y: 1},
	{X: 0, Y: -1},
}

// InBounds reports whether p lies on a size x size grid.
func InBounds(p Point, size int) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < size && p.Y < size
}

// Ray returns consecutive cells starting next to from and stepping by dir
// while match holds. The starting cell is not included.
func Ray(from, dir Point, size int, match func(Point) bool) []Point {
	var cells []Point
	for p := from.Add(dir); InBounds(p, size) && match(p); p = p.Add(dir) {
		cells = append(cells, p)
	}
	return cells
}

// Line returns the maximal run of matching cells through pivot along axis,
// ordered from the backward end to the forward end. The pivot appears once
// and is always included.
func Line(pivot, axis Point, size int, match func(Point) bool) []Point {
	back := Ray(pivot, axis.Neg(), size, match)
	fwd := Ray(pivot, axis, size, match)

	line := make([]Point, 0, len(back)+len(fwd)+1)
	for i := len(back) - 1; i >= 0; i-- {
		line = append(line, back[i])
	}
	line = append(line, pivot)
	return append(line, fwd...)
}

// RunLength counts the pivot plus matching cells in both directions of axis.
func RunLength(pivot, axis Point, size int, match func(Point) bool) int {
	return 1 + len(Ray(pivot, axis, size, match)) + len(Ray(pivot, axis.Neg(), size, match))
}

// Reachable returns every free cell reachable from start through 4-connected
// free cells, in breadth-first discovery order. start itself is excluded and
// does not need to be free.
func Reachable(start Point, size int, blocked func(Point) bool) []Point {
	if !InBounds(start, size) {
		return nil
	}

	visited := make([]bool, size*size)
	visited[start.Y*size+start.X] = true
	queue := []Point{start}
	var out []Point

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, d := range Neighbors {
			next := cur.Add(d)
			if !InBounds(next, size) || visited[next.Y*size+next.X] || blocked(next) {
				continue
			}
			visited[next.Y*size+next.X] = true
			out = append(out, next)
			queue = append(queue, next)
		}
	}

	return out
}

// HasPath reports whether to can be reached from from through free cells.
// The destination must itself be free.
func HasPath(from, to Point, size int, blocked func(Point) bool) bool {
	if !InBounds(to, size) || blocked(to) {
		return false
	}
	for _, p := range Reachable(from, size, blocked) {
		if p == to {
			return true
		}
	}
	return false
}
