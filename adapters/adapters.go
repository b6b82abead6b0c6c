// Package adapters assembles the built-in adapter registry. Registration is an
// explicit list: order matters, because overlapping patterns are resolved by
// whichever adapter registered first.
package adapters

import (
	"github.com/z-mio/parsehub"
	"github.com/z-mio/parsehub/adapters/direct"
	"github.com/z-mio/parsehub/adapters/youtube"
)

// DefaultRegistry builds the registry of built-in adapters. The direct-link
// adapter goes last as the generic fallback.
func DefaultRegistry() *parsehub.Registry {
	return parsehub.MustBuildRegistry(
		youtube.New(),
		direct.New(),
	)
}
