// Package server implements the HTTP surface of the share service: the
// /api/files routes, the middleware chain, health probes and metrics.
// Share semantics live in internal/share; this package maps them onto
// HTTP requests, status codes and response bodies.
package server
