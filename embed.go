package alpalo

import "embed"

// EmbeddedAssets holds the stylesheet and logo served under /public/.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
