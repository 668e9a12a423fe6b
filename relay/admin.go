package relay

import (
	"encoding/json"
	"net/http"
)

// HandleLobbies 输出当前大厅列表
// GET /lobbies
func (rl *Relay) HandleLobbies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rl.Lobbies())
}

// HandleMetrics 输出中继运行指标
// GET /metrics
func (rl *Relay) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"lobbies": len(rl.Lobbies()),
		"metrics": rl.metrics.Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
