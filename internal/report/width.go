package report

import (
	"os"

	"github.com/dbscope/lockwatch/internal/contract"
	"golang.org/x/term"
)

// chainBaseWidth is the space consumed by the chains table before the query
// column: the Severity, Sessions, Total Wait and Cycle columns with borders
// and padding.
const chainBaseWidth = 45

// maxQueryColWidth calculates the maximum width for query text in table
// output based on terminal width and configuration.
func maxQueryColWidth(cfg *contract.Config) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			// Fallback to conservative default if terminal size can't be detected
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Calculate available space for query text
	available := termWidth - chainBaseWidth
	if available < 15 {
		// Minimum reasonable query width
		return 15
	}
	if available > 70 {
		// Maximum query width to prevent overly long rows
		return 70
	}
	return available
}
