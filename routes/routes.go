// Package routes wires the HTTP surface.
//
// api.go registers /v1 and the probes; web.go serves / and /docs.
package routes
