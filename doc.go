// Package bridge connects an MQTT message source to HTTP delivery sinks
// through a configurable middleware pipeline.
//
// Each inbound message flows through an ordered chain of transform stages
// and ends in a delivery stage that hands the formatted payload to a REST
// endpoint with bounded retry. The pipeline is built once and reused for
// every message; each message gets its own execution context.
//
// The root package carries the shared building blocks: logging adapters and
// id generators. The moving parts live in the subpackages: message, pipeline,
// transform, delivery, source and config.
package bridge
