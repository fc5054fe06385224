// Package domain contains the core entities of the conversational bot:
// conversation threads with their ordered message histories, and the
// validation rules they must satisfy. Entities here have no dependencies on
// storage, transport or external services.
package domain
