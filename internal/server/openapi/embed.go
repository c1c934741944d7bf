// Package openapi embeds BOS's wire-contract document.
package openapi

import "embed"

//go:embed bos-v2.yaml
var FS embed.FS
