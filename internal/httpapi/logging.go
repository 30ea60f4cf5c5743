package httpapi

import (
	"github.com/rs/zerolog"
)

// zlog is the structured logger of the HTTP layer. Defaults to a disabled
// logger until SetLogger is called.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }
