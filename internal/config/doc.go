// Package config implements the configuration store for the NFC Command Container.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables. The merged result is validated before any
// component is started. The bot token is only ever read here and handed to
// the Telegram transport explicitly.
package config
