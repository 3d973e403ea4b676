package volbot

// TradeStats summarizes closed positions for the status display.
type TradeStats struct {
	Total      int
	Wins       int
	Losses     int
	Breakevens int
	WinRate    float64 // percent of total
}

// TotalPnL is the realized profit across all closed positions.
func (m *Manager) TotalPnL() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0.0
	for _, p := range m.positions {
		if p.Status == StatusClosed && p.ExitPrice > 0 {
			total += (p.ExitPrice - p.EntryPrice) * p.Shares
		}
	}
	return total
}

// TradeStats counts closed positions by outcome.
func (m *Manager) TradeStats() TradeStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s TradeStats
	for _, p := range m.positions {
		if p.Status != StatusClosed {
			continue
		}
		s.Total++
		switch {
		case p.ExitPrice > p.EntryPrice:
			s.Wins++
		case p.ExitPrice < p.EntryPrice:
			s.Losses++
		default:
			s.Breakevens++
		}
	}
	if s.Total > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Total) * 100
	}
	return s
}

// ClosedCount is the number of positions with a recorded exit.
func (m *Manager) ClosedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, p := range m.positions {
		if p.Status == StatusClosed {
			n++
		}
	}
	return n
}
