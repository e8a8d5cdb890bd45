// Package ingest feeds the models from the outside world.
//
// Modelers publish JSON reports describing devices, their samples and their
// alerts. Reports arrive either pushed to the HTTP server or pulled by the
// [Scheduler]; both paths end in [Ingester.Ingest], which validates the
// report as a whole before turning it into fact updates and samples.
//
// The main components are:
//
//   - [Client]: HTTP client fetching reports with per-modeler timeouts
//   - [Scheduler]: polls modelers at their intervals with a worker pool
//   - [Ingester]: applies validated reports to the fact and sample models
//   - [Seed]: facts loaded from YAML at startup
package ingest
