// Package scripts holds the Risor indexing scripts, one per language, at
// index/{language}.risor.
package scripts

import "embed"

// FS contains the embedded indexing scripts.
//
//go:embed index/*.risor
var FS embed.FS
