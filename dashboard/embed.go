// Package dashboard embeds the gnos web UI.
//
// The page subscribes to the server's SSE streams and renders devices, open
// alerts and the samples of the selected device. The server substitutes
// {{.Title}} before serving it.
package dashboard

import "embed"

// Assets holds assets/index.html.
//
//go:embed assets/*
var Assets embed.FS
