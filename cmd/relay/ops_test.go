package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/position-relay/internal/broker"
	"github.com/rickgao/position-relay/internal/config"
	"github.com/rickgao/position-relay/internal/metrics"
	"github.com/rickgao/position-relay/internal/position"
	"github.com/rickgao/position-relay/internal/store"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestBroker(t *testing.T) *broker.Broker {
	t.Helper()
	st := store.New()
	st.Upsert("10.0.0.2:5000", "bob")
	st.Upsert("10.0.0.1:5000", "alice")
	st.Update("10.0.0.1:5000", position.SymbolPosition{Symbol: "BTC", NetPosition: 1.5})

	b := broker.New(broker.DefaultConfig(), st)
	t.Cleanup(func() { b.Shutdown(context.Background()) })
	return b
}

func getJSON(t *testing.T, h http.Handler, path string, v interface{}) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name        string
		db          pinger
		wantStatus  string
		wantJournal interface{}
	}{
		{"journal disabled", nil, "healthy", "disabled"},
		{"journal connected", fakePinger{}, "healthy", "connected"},
		{"journal down", fakePinger{err: errors.New("refused")}, "degraded", map[string]interface{}{"status": "disconnected", "error": "refused"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createOpsHandler(newTestBroker(t), tt.db, prometheus.NewRegistry(), "/metrics")

			var body struct {
				Status     string                 `json:"status"`
				Components map[string]interface{} `json:"components"`
			}
			if code := getJSON(t, h, "/health", &body); code != http.StatusOK {
				t.Errorf("status code = %d", code)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}

			gotJournal, _ := json.Marshal(body.Components["journal"])
			wantJournal, _ := json.Marshal(tt.wantJournal)
			if string(gotJournal) != string(wantJournal) {
				t.Errorf("journal = %s, want %s", gotJournal, wantJournal)
			}

			brokerInfo, _ := body.Components["broker"].(map[string]interface{})
			if brokerInfo["clients"] != float64(2) {
				t.Errorf("broker component = %v", body.Components["broker"])
			}
		})
	}
}

func TestDebugPositions(t *testing.T) {
	h := createOpsHandler(newTestBroker(t), nil, prometheus.NewRegistry(), "/metrics")

	var body struct {
		Count   int `json:"count"`
		Clients []struct {
			Endpoint  string             `json:"endpoint"`
			ClientID  string             `json:"client_id"`
			Positions map[string]float64 `json:"positions"`
		} `json:"clients"`
	}
	getJSON(t, h, "/debug/positions", &body)

	if body.Count != 2 || len(body.Clients) != 2 {
		t.Fatalf("count = %d, clients = %d; want 2", body.Count, len(body.Clients))
	}
	first := body.Clients[0]
	if first.Endpoint != "10.0.0.1:5000" || first.ClientID != "alice" || first.Positions["BTC"] != 1.5 {
		t.Errorf("first client = %+v", first)
	}
	if len(body.Clients[1].Positions) != 0 {
		t.Errorf("bob positions = %v, want empty", body.Clients[1].Positions)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, metrics.DefaultNamespace)
	m.SessionOpened()

	h := createOpsHandler(newTestBroker(t), nil, reg, "/prom")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/prom", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), "position_relay_sessions_active 1") {
		t.Errorf("metrics output missing sessions gauge:\n%s", body)
	}
}

func TestBrokerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Listener.Host = "127.0.0.1"
	cfg.Store.EvictOnDisconnect = true

	bc := brokerConfig(cfg)
	if bc.Addr != "127.0.0.1:9002" {
		t.Errorf("Addr = %q", bc.Addr)
	}
	if !bc.EvictOnDisconnect {
		t.Error("EvictOnDisconnect not carried over")
	}
	if bc.Session.QueueCapacity != config.DefaultQueueCapacity {
		t.Errorf("Session.QueueCapacity = %d", bc.Session.QueueCapacity)
	}
	if bc.MaxFrameSize != config.DefaultMaxFrameSize {
		t.Errorf("MaxFrameSize = %d", bc.MaxFrameSize)
	}
}
