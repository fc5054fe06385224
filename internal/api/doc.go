// Package api contains the HTTP boundary of the bot: the chat platform
// webhook, the background task execution endpoint, the event and command
// models, and the middleware that authenticates both surfaces against
// their respective trust roots.
package api
