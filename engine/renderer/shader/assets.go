package shader

import "embed"

// Assets holds the WGSL programs of the visualization passes.
//
//go:embed assets/*.wgsl
var Assets embed.FS
