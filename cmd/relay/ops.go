package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/position-relay/internal/broker"
)

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// createOpsHandler serves health, debug, and metrics endpoints. db is nil when
// the journal is disabled.
func createOpsHandler(b *broker.Broker, db pinger, gatherer prometheus.Gatherer, metricsPath string) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		health.Components["broker"] = map[string]interface{}{
			"sessions": b.SessionCount(),
			"clients":  b.Store().Len(),
		}

		// Check database
		if db == nil {
			health.Components["journal"] = "disabled"
		} else {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()

			if err := db.Ping(ctx); err != nil {
				health.Status = "degraded"
				health.Components["journal"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["journal"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/positions", func(w http.ResponseWriter, r *http.Request) {
		type clientView struct {
			Endpoint  string             `json:"endpoint"`
			ClientID  string             `json:"client_id"`
			Positions map[string]float64 `json:"positions"`
		}

		snapshot := b.Store().Snapshot()
		clients := make([]clientView, 0, len(snapshot))
		for endpoint, cp := range snapshot {
			view := clientView{
				Endpoint:  endpoint,
				ClientID:  cp.ClientID,
				Positions: make(map[string]float64, len(cp.Positions)),
			}
			for sym, p := range cp.Positions {
				view.Positions[sym] = p.NetPosition
			}
			clients = append(clients, view)
		}
		sort.Slice(clients, func(i, j int) bool { return clients[i].Endpoint < clients[j].Endpoint })

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   len(clients),
			"clients": clients,
		})
	})

	return mux
}
