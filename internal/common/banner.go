package common

import (
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner
func PrintBanner(component, version string) {
	banner.PrintSimple(component, version)
}
