// Package telemetry streams conversation events to SSE clients.
//
// Clients may filter to one chat with the ?chat= query parameter. A filtered
// stream carries that chat's monotonic IDs; the unfiltered stream carries a
// hub-wide sequence. The last N events of each sequence are kept so a
// reconnecting client can resume with Last-Event-ID.
package telemetry
