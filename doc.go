// Package backend is the LocalMind chat server: it relays replies from a local
// OpenAI-compatible model to browsers as server-sent events and keeps each user's
// conversations.
//
// Commands:
//
//   - cmd/server: the HTTP API
//   - cmd/migrate: create or inspect the schema
//   - cmd/seed: fake conversations and development tokens
//   - cmd/cli: terminal client for the API
//
// Packages:
//
//   - internal/chat: one chat turn from request to stored reply
//   - internal/relay: upstream-to-client streaming, the generation registry and cross-instance stop
//   - internal/inference: the model client
//   - internal/repository, internal/models, internal/database: conversation storage
//   - internal/auth: bearer token verification
//   - internal/handlers, internal/middleware: the HTTP surface
//   - internal/client: Go client used by the CLI
package backend
