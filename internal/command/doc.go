// Package command runs the chat conversation that turns a tag identifier and
// a block 4 payload into writer commands.
//
// Transports hand every incoming text to Orchestrator.HandleMessage and send
// back the replies it returns. Slash commands are dispatched through a
// Registry; plain text advances the chat's session. Each lifecycle step is
// written to the audit trail and published as a telemetry event.
package command
