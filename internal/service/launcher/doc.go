// Package launcher keeps the monitoring application running on a host.
//
// It loads a program descriptor, launches the process with its environment
// file applied, restarts it on crashes within a bounded budget, and exposes a
// small HTTP API for health checks and operator-requested restarts.
package launcher
