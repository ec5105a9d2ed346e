// Package telegram connects the conversation orchestrator to a Telegram bot
// using long polling.
package telegram
