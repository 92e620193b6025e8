package schema

import "go.uber.org/fx"

// Module migrates every table the tracking services own on startup.
var Module = fx.Module("schema", fx.Invoke(Migrate))
