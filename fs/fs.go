package appfs

import "embed"

// FS embeds runtime assets, most importantly the goose migrations.
//
//go:embed migrations
var FS embed.FS
