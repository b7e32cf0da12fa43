// Package webui exposes the embedded web console.
// It lives at the module root so it can embed the sibling "web/" directory;
// internal/server mounts it under /ui/.
package webui

import "embed"

// FS is the embedded web directory tree.
//
//go:embed web
var FS embed.FS
