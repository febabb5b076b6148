package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/climate-control/internal/platform"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Entities      EntityMetrics    `json:"entities"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
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
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
	Topics    int  `json:"topics"`
}

// EntityMetrics counts entities and config entries.
type EntityMetrics struct {
	Total        int            `json:"total"`
	ByDomain     map[string]int `json:"by_domain"`
	ConfigEntry  int            `json:"config_entries"`
	Automations  int            `json:"automations"`
	ServiceCount int            `json:"services"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleSystemMetrics returns runtime and platform statistics.
func (s *Server) handleSystemMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		MQTT: MQTTMetrics{
			Connected: s.host.MQTT().IsConnected(),
			Topics:    s.host.MQTT().TopicCount(),
		},
		Entities: EntityMetrics{
			ByDomain:    make(map[string]int),
			ConfigEntry: len(s.entries.List(r.Context(), "")),
		},
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
	}

	for _, state := range s.host.States().All() {
		metrics.Entities.Total++
		metrics.Entities.ByDomain[platform.DomainOf(state.EntityID)]++
	}
	for _, names := range s.host.Services().List() {
		metrics.Entities.ServiceCount += len(names)
	}
	if s.rules != nil {
		metrics.Entities.Automations = s.rules.Count()
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
