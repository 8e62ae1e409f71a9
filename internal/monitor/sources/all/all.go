// Package all imports all available source adapters for side-effect
// registration.
//
// Import this package from your main to ensure all sources are registered:
//   import _ "courtwatch/internal/monitor/sources/all"
package all

import (
	_ "courtwatch/internal/monitor/sources/flashscore"
	_ "courtwatch/internal/monitor/sources/sofascore"
)
