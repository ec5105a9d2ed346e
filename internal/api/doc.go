// Package api exposes command derivation over HTTP/JSON.
//
// Besides the one-shot derive endpoint, the API can drive the same chat
// conversation the Telegram bot runs, list live sessions and stream
// conversation telemetry over SSE. Every response uses the envelope
// {result, data, code, message, correlationId}.
package api
