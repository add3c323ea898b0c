// Package proxy implements the request-forwarding and pagination-streaming
// core of connect.
//
// # Parameter classification
//
// Every inbound query is split by Classify into pass-through parameters,
// forwarded upstream verbatim, and control parameters consumed locally:
//
//   - since: incremental-sync watermark
//   - limit: page size override
//   - ms_since_param_at_src: upstream name that receives the since value
//   - ms_updated_property: entity field copied into _updated
//   - ms_data_property: envelope property holding the entities (default "data")
//
// # Streaming
//
// GET requests are served by a Streamer. It fetches one page at a time
// through a Forwarder, extracts the entities from the page envelope and
// emits them as fragments of a single JSON array:
//
//	[ entity , entity , ... ]
//
// Pagination follows paging.next until it is null, greater than
// paging.last, or a page comes back empty. A caller that passes an explicit
// page parameter drives paging itself and receives one page.
//
// The fragment channel is unbuffered: the next page is requested only once
// the previous page has been handed to the response writer, so memory use
// is bounded by one page regardless of the listing size.
//
// # Response writing
//
// WriteStream commits status 200 lazily. When the first page is rejected
// the caller receives the upstream status with a diagnostic object:
//
//	{"original_response_text": <upstream body>}
//
// When a later page fails the diagnostic is appended to the partial array
// and the connection is aborted, so the client observes a truncated
// response rather than a well-formed one.
//
// Other methods are relayed once through the Forwarder with
// WritePassthrough. Internal faults are written by WriteError as plain text
// with status 500.
package proxy
