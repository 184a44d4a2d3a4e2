// ABOUTME: TUI update helpers for server
// ABOUTME: Collects server and tone state and pushes it to the TUI
package server

import (
	"sort"
	"time"
)

// status snapshots the server for display
func (s *Server) status() ServerStatus {
	st := ServerStatus{
		Name: s.config.Name,
		Port: s.config.Port,
	}

	if s.engine != nil {
		stats := s.engine.Stats()
		st.Stream = s.engine.Config().String()
		st.Frequency = stats.Frequency
		st.Frames = stats.Frames
		st.Underruns = stats.Underruns
	} else {
		st.Stream = "Initializing..."
	}

	s.clientsMu.RLock()
	st.Clients = make([]ClientInfo, 0, len(s.clients))
	for _, client := range s.clients {
		st.Clients = append(st.Clients, ClientInfo{
			Name:      client.Name,
			ID:        client.ID,
			Codec:     client.Codec,
			Connected: time.Since(client.connectedAt),
		})
	}
	s.clientsMu.RUnlock()

	sort.Slice(st.Clients, func(i, j int) bool {
		return st.Clients[i].Name < st.Clients[j].Name
	})
	return st
}

// updateTUI sends current server state to the TUI
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}
	s.tui.Update(s.status())
}

// statusLoop refreshes the TUI until the server stops
func (s *Server) statusLoop() {
	if s.tui == nil {
		return
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.updateTUI()
		case <-s.stopChan:
			return
		}
	}
}
