package measurement

import (
	"sync"
	"time"
)

type Point struct {
	name            string
	min, max, total time.Duration
	count           int
	calcLock        sync.Mutex
}

func NewPoint(name string) *Point {
	return &Point{
		name:     name,
		calcLock: sync.Mutex{},
	}
}

// Name the name of this measure point
func (p *Point) Name() string {
	return p.name
}

func (p *Point) Reset() {
	p.calcLock.Lock()
	defer p.calcLock.Unlock()
	p.min = 0
	p.max = 0
	p.total = 0
	p.count = 0
}

// Monitor get a new started monitor for this point
func (p *Point) Monitor() *Monitor {
	return &Monitor{point: p, start: time.Now()}
}

func (p *Point) add(accrued time.Duration) {
	p.calcLock.Lock()
	defer p.calcLock.Unlock()
	p.count++
	p.total += accrued
	if accrued > p.max {
		p.max = accrued
	}
	if (accrued < p.min) || (p.min == 0) {
		p.min = accrued
	}
}

func (p *Point) Data() Data {
	p.calcLock.Lock()
	defer p.calcLock.Unlock()
	d := Data{
		Name:  p.name,
		Min:   calcTime(p.min),
		Max:   calcTime(p.max),
		Total: calcTime(p.total),
		Count: p.count,
	}
	if p.count > 0 {
		d.Average = calcTime(p.total / time.Duration(p.count))
	}
	return d
}

func calcTime(d time.Duration) int64 {
	// converting nano seconds to milli
	return int64(d) / 1000000
}

// Monitor measures one run between its creation and Stop. A zero Monitor
// belongs to no point and Stop is a no op.
type Monitor struct {
	point *Point
	start time.Time
}

func (m *Monitor) Stop() {
	if m.point == nil {
		return
	}
	m.point.add(time.Since(m.start))
}
