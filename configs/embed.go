// Package configs provides the embedded configuration template for docsift.
//
// The template is embedded at build time with //go:embed so it ships inside
// the binary regardless of how docsift was installed. It is written out by
// `docsift config init`.
package configs

import _ "embed"

// ExampleConfig is the annotated configuration template.
//
//go:embed docsift.example.yaml
var ExampleConfig string
