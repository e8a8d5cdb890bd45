// Package server provides the HTTP surface of gnos.
//
//   - GET /: the embedded dashboard page
//   - GET /api/query: one-shot query against a fact store, as JSON
//   - GET /api/samples: one sample set, as JSON
//   - GET /api/sse/query: Server-Sent Events stream of query solutions
//   - GET /api/sse/samples: Server-Sent Events stream of sample details
//   - PUT /api/modeler: modeler report ingestion
//
// Each SSE request runs one stream bridge on its handler goroutine. The
// server shuts down gracefully on context cancellation, with a 5-second
// timeout for in-flight requests.
package server
