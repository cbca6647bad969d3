package service

import (
	"sync"
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	monitorRunning atomic.Bool
	lastScanUnix   atomic.Int64 // unix seconds
	openPositions  atomic.Int64

	mu      sync.Mutex
	pending []string // тикеры с сработавшим, но не исполненным стопом
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetMonitorRunning(v bool) { s.monitorRunning.Store(v) }
func (s *State) MonitorRunning() bool     { return s.monitorRunning.Load() }

func (s *State) TouchScan(t time.Time) { s.lastScanUnix.Store(t.Unix()) }
func (s *State) LastScan() time.Time {
	u := s.lastScanUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) SetOpenPositions(n int) { s.openPositions.Store(int64(n)) }
func (s *State) OpenPositions() int     { return int(s.openPositions.Load()) }

func (s *State) SetPendingLiquidations(symbols []string) {
	cp := make([]string, len(symbols))
	copy(cp, symbols)
	s.mu.Lock()
	s.pending = cp
	s.mu.Unlock()
}

func (s *State) PendingLiquidations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.pending))
	copy(out, s.pending)
	return out
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
