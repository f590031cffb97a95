// Package api serves the retrieval engine over HTTP with chi.
//
// Routes:
//
//	GET /api/search?q=&doc_types=&limit=&<filter keys>
//	GET /api/status
//	GET /healthz
//	GET /metrics (when metrics are enabled)
//
// Invalid queries return 400 and an unavailable embedding provider returns
// 503. Searcher failures never fail the request: the response lists them in
// failed_doc_types with partial set to true.
package api
