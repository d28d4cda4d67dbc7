// Package logging holds the component and context conventions shared by every
// logger in the process.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Component creates a child of the global logger tagged with a component
// name under the "cmp" key.
func Component(name string) zerolog.Logger {
	return Sub(log.Logger, name)
}

// Sub tags parent with a component name.
func Sub(parent zerolog.Logger, name string) zerolog.Logger {
	return parent.With().Str("cmp", name).Logger()
}
