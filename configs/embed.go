// Package configs provides embedded configuration templates for the
// codequal-rag engine.
//
// Templates are embedded at build time with //go:embed so they ship in
// every distribution, whether the engine is built from source or
// installed as a release binary. Callers that scaffold a project
// configuration write ConfigTemplate to disk; every key in it layers
// over the defaults in internal/config (see config.Load()).
package configs

import _ "embed"

// ConfigTemplate is the annotated example configuration. It parses and
// validates against internal/config as-is.
//
//go:embed config.example.yaml
var ConfigTemplate string
