package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockDevice tracks the counters and alert state of one simulated device.
type mockDevice struct {
	uptime       int
	bps          float64
	alerting     bool
	nextChangeAt time.Time
}

// StartMockModeler runs a mock modeler that reports two devices per site.
// Traffic drifts on every poll and each device raises or clears a link
// alert every 20-60 seconds.
// Call this in a goroutine before starting gnos.
func StartMockModeler(addr string) {
	var (
		devices = make(map[string]*mockDevice)
		mu      sync.Mutex
	)

	http.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		site := r.URL.Query().Get("site")

		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		report := map[string]any{}
		reported := map[string]any{}
		var alerts []map[string]any

		mu.Lock()
		for _, role := range []string{"core", "edge"} {
			name := fmt.Sprintf("%s-%s", site, role)
			d, exists := devices[name]
			if !exists {
				d = &mockDevice{
					bps:          float64(1000 + rand.Intn(9000)),
					nextChangeAt: time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second),
				}
				devices[name] = d
			}

			d.uptime += 15
			d.bps = max(0, d.bps*(0.8+rand.Float64()*0.4))

			if time.Now().After(d.nextChangeAt) {
				d.alerting = !d.alerting
				d.nextChangeAt = time.Now().Add(time.Duration(20+rand.Intn(41)) * time.Second)
				slog.Info("alert change", "device", name, "alerting", d.alerting)
			}

			state := "closed"
			if d.alerting {
				state = "open"
			}
			alerts = append(alerts, map[string]any{
				"device":     name,
				"id":         "link-down",
				"level":      "warning",
				"mesg":       name + " uplink is flapping",
				"resolution": "check the uplink optics",
				"state":      state,
			})

			reported[name] = map[string]any{
				"facts": map[string]any{
					"snmp:sysName":   name,
					"snmp:sysUpTime": d.uptime,
					"gnos:site":      site,
				},
				"samples": map[string]any{"bps": d.bps},
			}
		}
		mu.Unlock()

		report["devices"] = reported
		report["alerts"] = alerts

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			slog.Error("failed to write report", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("mock modeler error", "error", err)
	}
}
