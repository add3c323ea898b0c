// Package handlers provides the HTTP handlers of the proxy.
//
// ResourceHandler serves every path that is not an operational route:
//
//   - GET /<path> classifies the query, streams all upstream pages as one
//     JSON array and aborts the connection if the listing fails after the
//     200 status was sent.
//   - PUT, POST, DELETE and PATCH /<path> forward the JSON body once and
//     relay the upstream status and body.
//
// Every request is counted in the metrics collector, written to the
// journal and logged with its request ID.
//
// RegisterChecks wires the readiness checks served on /ready: the upstream
// token (held or obtainable) and the journal backend.
package handlers
