package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the /system response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Project       ProjectMetrics `json:"project"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedEvents    uint64 `json:"dropped_events"`
}

// ProjectMetrics counts the items of the running project.
type ProjectMetrics struct {
	Name           string         `json:"name"`
	Running        bool           `json:"running"`
	Modules        int            `json:"modules"`
	ModulesByType  map[string]int `json:"modules_by_type"`
	Actions        int            `json:"actions"`
	ActionsByState map[string]int `json:"actions_by_state"`
	Enabled        int            `json:"enabled_actions"`
}

// handleSystemMetrics returns runtime and project statistics.
func (s *Server) handleSystemMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	p := s.engine.Project()
	proj := ProjectMetrics{
		Name:           p.Name(),
		Running:        s.engine.Running(),
		ModulesByType:  make(map[string]int),
		ActionsByState: make(map[string]int),
	}
	for _, m := range p.Modules().Items() {
		proj.Modules++
		proj.ModulesByType[m.TypeName()]++
	}
	for _, a := range p.Actions().Items() {
		proj.Actions++
		proj.ActionsByState[a.State().String()]++
		if a.Enabled() {
			proj.Enabled++
		}
	}

	writeJSON(w, http.StatusOK, SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			DroppedEvents:    s.hub.Dropped(),
		},
		Project: proj,
	})
}
