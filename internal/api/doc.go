// Package api exposes the read-facing HTTP interface: the per-stream
// query endpoints, the refresh control endpoints, and the operational
// probes.
package api
