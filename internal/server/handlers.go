package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "tradecore-bot",
	})
}

// statusResponse is the admin /status payload: host resource usage plus
// the state of every long-running component.
type statusResponse struct {
	UptimeSeconds  float64            `json:"uptime_seconds"`
	CPUPercent     float64            `json:"cpu_percent"`
	MemoryPercent  float64            `json:"memory_percent"`
	BrokerConnected bool              `json:"broker_connected"`
	SchedulerState string             `json:"scheduler_state"`
	SchedulerStats schedulerStatsView `json:"scheduler_stats"`
	PositionSync   positionSyncView   `json:"position_sync"`
	WebSocketClients int              `json:"websocket_clients"`
}

type schedulerStatsView struct {
	EvaluationsRun     int64   `json:"evaluations_run"`
	SignalsGenerated   int64   `json:"signals_generated"`
	TradesExecuted     int64   `json:"trades_executed"`
	TradesRejected     int64   `json:"trades_rejected"`
	Errors             int64   `json:"errors"`
	MonitoredPositions int     `json:"monitored_positions"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

type positionSyncView struct {
	Total     int64  `json:"total"`
	Success   int64  `json:"success"`
	Failed    int64  `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

// handleStatus reports host CPU/RAM (grounded in the teacher's
// getSystemStats, internal/server/system_handlers.go) alongside every
// in-process component's state, a narrower analogue of the teacher's
// /api/system/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, memPct := s.hostStats()

	resp := statusResponse{
		UptimeSeconds:    time.Since(s.startedAt).Seconds(),
		CPUPercent:       cpuPct,
		MemoryPercent:    memPct,
		BrokerConnected:  s.broker.IsConnected(),
		WebSocketClients: s.hub.ClientCount(),
	}

	if s.scheduler != nil {
		resp.SchedulerState = string(s.scheduler.Status())
		st := s.scheduler.StatsSnapshot()
		resp.SchedulerStats = schedulerStatsView{
			EvaluationsRun:     st.EvaluationsRun,
			SignalsGenerated:   st.SignalsGenerated,
			TradesExecuted:     st.TradesExecuted,
			TradesRejected:     st.TradesRejected,
			Errors:             st.Errors,
			MonitoredPositions: st.MonitoredPositions,
			UptimeSeconds:      st.UptimeSeconds(),
		}
	}

	if s.positionSync != nil {
		st := s.positionSync.Stats()
		resp.PositionSync = positionSyncView{
			Total: st.Total, Success: st.Success, Failed: st.Failed, LastError: st.LastError,
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// hostStats mirrors the teacher's getSystemStats: a short CPU sample
// alongside an instantaneous memory read, both best-effort.
func (s *Server) hostStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read CPU percentage")
		cpuPercent = []float64{0}
	}
	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read memory statistics")
		return cpuAvg, 0
	}
	return cpuAvg, memStat.UsedPercent
}
