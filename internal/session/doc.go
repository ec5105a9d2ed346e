// Package session tracks the two-step conversation each chat has with the bot.
//
// A session starts awaiting a tag identifier, moves to awaiting the
// configuration block once a valid identifier arrives, and ends when commands
// are generated, the user cancels, or it sits idle longer than the TTL.
//
// The Manager keys sessions by chat ID; a chat has at most one live session.
package session
