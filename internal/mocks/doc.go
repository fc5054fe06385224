// Package mocks provides hand-written test doubles for the project's
// interfaces. Each mock carries overridable function fields, simple
// in-memory defaults, and call tracking for assertions.
package mocks
