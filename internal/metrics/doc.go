// Package metrics exposes Prometheus collectors for retrieval, embedding and
// HTTP traffic. Collectors are registered with an injected Registerer.
package metrics
