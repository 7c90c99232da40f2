// Package logging provides the structured logging interface used across the
// service. It hides zerolog behind a small Logger interface with typed fields
// so components and tests do not depend on the backend directly.
package logging
