package game

import (
	"math/rand/v2"

	"arcade/internal/server/core"
)

// step moves p one cell in d on a toroidal board
func step(p core.Point, d core.Direction, w, h int) core.Point {
	dx, dy := d.Delta()
	return core.Point{
		X: ((p.X+dx)%w + w) % w,
		Y: ((p.Y+dy)%h + h) % h,
	}
}

func contains(body []core.Point, p core.Point) bool {
	for _, c := range body {
		if c == p {
			return true
		}
	}
	return false
}

// line lays out a snake of length n with its head at head, trailing away from d
func line(head core.Point, d core.Direction, n, w, h int) []core.Point {
	body := make([]core.Point, 0, n)
	p := head
	for range n {
		body = append(body, p)
		p = step(p, d.Reverse(), w, h)
	}
	return body
}

// spawnFood picks a uniformly random free cell, nil when the board is full
func spawnFood(rng *rand.Rand, w, h int, occupied func(core.Point) bool) *core.Point {
	free := make([]core.Point, 0, w*h)
	for y := range h {
		for x := range w {
			p := core.Point{X: x, Y: y}
			if !occupied(p) {
				free = append(free, p)
			}
		}
	}
	if len(free) == 0 {
		return nil
	}
	p := free[rng.IntN(len(free))]
	return &p
}
