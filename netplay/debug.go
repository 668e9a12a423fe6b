package netplay

import (
	"encoding/json"
	"net/http"
)

// HandleMetrics 输出会话状态与运行指标
// GET /debug/netplay
func HandleMetrics(s *Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		payload := map[string]any{
			"state":   s.State().String(),
			"phase":   s.Phase().String(),
			"metrics": s.Metrics().Snapshot(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}
}
