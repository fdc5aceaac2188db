// Package loader reads network description files.
//
// A file is a stream of whitespace separated numbers; line breaks only
// matter for error messages and '#' starts a comment. The header is
//
//	intersections roads connections vehicles spawnRate
//
// followed by one "x y" pair per intersection, one
// "source dest speedLimit capacity" record per road (intersections by
// index), and one "intersection fromRoad toRoad turn" record per
// connection (roads by index, turn 0 left, 1 straight, 2 right). An
// optional trailing section starts with a count and holds
// "intersection connectionA connectionB" records that link two
// connections of the same intersection.
package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ardalan-sia/trafficsim/pkg/geom"
	"github.com/ardalan-sia/trafficsim/pkg/graph"
)

var (
	ErrSyntax = errors.New("syntax error")
	ErrRange  = errors.New("index out of range")
)

type Road struct {
	Line       int
	Source     int
	Dest       int
	SpeedLimit float64
	Capacity   int
}

type Connection struct {
	Line         int
	Intersection int
	From         int
	To           int
	Turn         graph.Turn
}

type Link struct {
	Line         int
	Intersection int
	A            int // connection index of the straight primary
	B            int
}

// Layout is a parsed network file.
type Layout struct {
	Intersections []geom.Point
	Roads         []Road
	Connections   []Connection
	Links         []Link
	Vehicles      int
	SpawnRate     float64
}

// Load opens and parses the file at path.
func Load(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open network file: %w", err)
	}
	defer f.Close()
	l, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Parse reads a layout. It checks the syntax and the counts; indices are
// checked by Build.
func Parse(r io.Reader) (*Layout, error) {
	t := &tokens{sc: bufio.NewScanner(r)}
	var (
		l                       Layout
		nIn, nRoad, nConn, nCar int
		err                     error
	)
	for _, dst := range []*int{&nIn, &nRoad, &nConn, &nCar} {
		if *dst, err = t.readCount("header count"); err != nil {
			return nil, err
		}
	}
	if l.SpawnRate, err = t.readFloat("spawn rate"); err != nil {
		return nil, err
	}
	if l.SpawnRate < 0 {
		return nil, fmt.Errorf("line %d: %w: negative spawn rate %v", t.line, ErrSyntax, l.SpawnRate)
	}
	l.Vehicles = nCar

	for i := 0; i < nIn; i++ {
		x, err := t.readFloat("intersection x")
		if err != nil {
			return nil, err
		}
		y, err := t.readFloat("intersection y")
		if err != nil {
			return nil, err
		}
		l.Intersections = append(l.Intersections, geom.Pt(x, y))
	}

	for i := 0; i < nRoad; i++ {
		var rd Road
		if rd.Source, err = t.readInt("road source"); err != nil {
			return nil, err
		}
		rd.Line = t.line
		if rd.Dest, err = t.readInt("road destination"); err != nil {
			return nil, err
		}
		if rd.SpeedLimit, err = t.readFloat("speed limit"); err != nil {
			return nil, err
		}
		if rd.Capacity, err = t.readInt("capacity"); err != nil {
			return nil, err
		}
		l.Roads = append(l.Roads, rd)
	}

	for i := 0; i < nConn; i++ {
		var c Connection
		if c.Intersection, err = t.readInt("connection intersection"); err != nil {
			return nil, err
		}
		c.Line = t.line
		if c.From, err = t.readInt("connection from"); err != nil {
			return nil, err
		}
		if c.To, err = t.readInt("connection to"); err != nil {
			return nil, err
		}
		turn, err := t.readInt("turn")
		if err != nil {
			return nil, err
		}
		c.Turn = graph.Turn(turn)
		if !c.Turn.Valid() {
			return nil, fmt.Errorf("line %d: %w: turn %d is not 0, 1 or 2", t.line, ErrSyntax, turn)
		}
		l.Connections = append(l.Connections, c)
	}

	if !t.more() {
		return &l, t.err()
	}
	nLink, err := t.readCount("link count")
	if err != nil {
		return nil, err
	}
	for i := 0; i < nLink; i++ {
		var lk Link
		if lk.Intersection, err = t.readInt("link intersection"); err != nil {
			return nil, err
		}
		lk.Line = t.line
		if lk.A, err = t.readInt("link primary"); err != nil {
			return nil, err
		}
		if lk.B, err = t.readInt("link secondary"); err != nil {
			return nil, err
		}
		l.Links = append(l.Links, lk)
	}
	if t.more() {
		return nil, fmt.Errorf("line %d: %w: unexpected %q after the last section", t.line, ErrSyntax, t.fields[0])
	}
	return &l, t.err()
}

// Build creates the network the layout describes. Road i of the file
// becomes road i of the network and connection i signal i.
func (l *Layout) Build() (*graph.Network, error) {
	n := graph.New()
	ins := make([]int, len(l.Intersections))
	for i, p := range l.Intersections {
		ins[i] = n.AddIntersection(p).ID
	}
	roads := make([]int, len(l.Roads))
	for i, rd := range l.Roads {
		if !inRange(rd.Source, len(ins)) || !inRange(rd.Dest, len(ins)) {
			return nil, fmt.Errorf("line %d: road %d: %w: intersections %d->%d of %d", rd.Line, i, ErrRange, rd.Source, rd.Dest, len(ins))
		}
		r, err := n.AddRoad(ins[rd.Source], ins[rd.Dest], rd.SpeedLimit, rd.Capacity)
		if err != nil {
			return nil, fmt.Errorf("line %d: road %d: %w", rd.Line, i, err)
		}
		roads[i] = r.ID
	}
	signals := make([]int, len(l.Connections))
	for i, c := range l.Connections {
		if !inRange(c.Intersection, len(ins)) {
			return nil, fmt.Errorf("line %d: connection %d: %w: intersection %d", c.Line, i, ErrRange, c.Intersection)
		}
		if !inRange(c.From, len(roads)) || !inRange(c.To, len(roads)) {
			return nil, fmt.Errorf("line %d: connection %d: %w: roads %d->%d of %d", c.Line, i, ErrRange, c.From, c.To, len(roads))
		}
		s, err := n.Connect(ins[c.Intersection], roads[c.From], roads[c.To], c.Turn)
		if err != nil {
			return nil, fmt.Errorf("line %d: connection %d: %w", c.Line, i, err)
		}
		signals[i] = s.ID
	}
	for i, lk := range l.Links {
		if !inRange(lk.Intersection, len(ins)) {
			return nil, fmt.Errorf("line %d: link %d: %w: intersection %d", lk.Line, i, ErrRange, lk.Intersection)
		}
		if !inRange(lk.A, len(signals)) || !inRange(lk.B, len(signals)) {
			return nil, fmt.Errorf("line %d: link %d: %w: connections %d, %d of %d", lk.Line, i, ErrRange, lk.A, lk.B, len(signals))
		}
		if err := n.Link(ins[lk.Intersection], signals[lk.A], signals[lk.B]); err != nil {
			return nil, fmt.Errorf("line %d: link %d: %w", lk.Line, i, err)
		}
	}
	return n, nil
}

func inRange(i, n int) bool { return i >= 0 && i < n }

// tokens yields whitespace separated fields and remembers the line each
// came from.
type tokens struct {
	sc     *bufio.Scanner
	fields []string
	line   int
	failed error
}

func (t *tokens) more() bool {
	for len(t.fields) == 0 {
		if !t.sc.Scan() {
			t.failed = t.sc.Err()
			return false
		}
		t.line++
		text := t.sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		t.fields = strings.Fields(text)
	}
	return true
}

func (t *tokens) err() error {
	if t.failed != nil {
		return fmt.Errorf("read network: %w", t.failed)
	}
	return nil
}

func (t *tokens) next(what string) (string, error) {
	if !t.more() {
		if err := t.err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("line %d: %w: missing %s", t.line, ErrSyntax, what)
	}
	f := t.fields[0]
	t.fields = t.fields[1:]
	return f, nil
}

func (t *tokens) readInt(what string) (int, error) {
	f, err := t.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(f)
	if err != nil {
		return 0, fmt.Errorf("line %d: %w: %s %q is not an integer", t.line, ErrSyntax, what, f)
	}
	return v, nil
}

func (t *tokens) readCount(what string) (int, error) {
	v, err := t.readInt(what)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("line %d: %w: negative %s %d", t.line, ErrSyntax, what, v)
	}
	return v, nil
}

func (t *tokens) readFloat(what string) (float64, error) {
	f, err := t.next(what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(f, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %w: %s %q is not a number", t.line, ErrSyntax, what, f)
	}
	return v, nil
}
