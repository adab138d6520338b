// ABOUTME: Version information for the time sync tools
// ABOUTME: Shared by the server banner, mDNS TXT records and the client TUI
package version

const (
	// Version is the release of this module
	Version = "0.3.0"

	// Product names the tools in logs and discovery records
	Product = "timesync-go"

	// Manufacturer identifies the maintainer
	Manufacturer = "Resonate Protocol"
)
