// Package gnos serves a live network dashboard.
//
// Devices, their samples and their alerts are reported by modelers, external
// processes that either expose a JSON report over HTTP or push it to
// PUT /api/modeler. Reports become facts in named stores and samples in
// bounded per-device buffers. Browsers subscribe to queries over those facts
// and to sample summaries through Server-Sent Events, and receive a new
// payload only when the answer changes.
//
// # Quick Start
//
//	m, _ := gnos.NewModeler("snmp", "http://localhost:9001/report")
//	g, _ := gnos.New(gnos.WithModeler(m), gnos.WithSeedFile("network.yaml"))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	g.Start(ctx) // blocks until context is cancelled
//
// # Queries
//
// Streams and one-shot queries use a small SPARQL-like language:
//
//	PREFIX snmp: <http://gnos/snmp#>
//	SELECT ?device ?name WHERE {
//	    ?device snmp:sysName ?name .
//	    OPTIONAL { ?device snmp:location ?where }
//	    FILTER(?name != "lab")
//	}
//
// # Architecture
//
//   - internal/model: the fact model actor, its stores and change detection
//   - internal/samples: the sample model actor
//   - internal/query: query compilation, evaluation and the query cache
//   - internal/stream: bridges from model pushes to SSE frames
//   - internal/ingest: modeler polling, report validation and seeding
//   - internal/server: HTTP routes and SSE handling
//   - dashboard: embedded web UI assets
package gnos
