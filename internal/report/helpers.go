package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dbscope/lockwatch/schema"
	"github.com/fatih/color"
)

// Health score label thresholds and their console colors.
const (
	healthyValue  = "Healthy"
	degradedValue = "Degraded"
	strainedValue = "Strained"
	criticalValue = "Critical"
)

var (
	healthyColor  = color.New(color.FgGreen)
	degradedColor = color.New(color.FgYellow)
	strainedColor = color.New(color.FgMagenta, color.Bold)
	criticalColor = color.New(color.FgRed, color.Bold)
)

// healthLabel maps a 0-100 health score onto a plain text label.
func healthLabel(score float64) string {
	switch {
	case score >= 80:
		return healthyValue
	case score >= 60:
		return degradedValue
	case score >= 40:
		return strainedValue
	default:
		return criticalValue
	}
}

// colorHealthLabel returns the label with the matching console color applied.
func colorHealthLabel(score float64) string {
	text := healthLabel(score)
	switch text {
	case healthyValue:
		return healthyColor.Sprint(text)
	case degradedValue:
		return degradedColor.Sprint(text)
	case strainedValue:
		return strainedColor.Sprint(text)
	default:
		return criticalColor.Sprint(text)
	}
}

// colorSeverity applies the severity color scheme to a severity string.
func colorSeverity(s schema.Severity) string {
	switch s {
	case schema.SeverityCritical:
		return criticalColor.Sprint(string(s))
	case schema.SeverityHigh:
		return strainedColor.Sprint(string(s))
	case schema.SeverityMedium:
		return degradedColor.Sprint(string(s))
	default:
		return string(s)
	}
}

// colorPriority applies the severity color scheme to an advice priority.
func colorPriority(p schema.Priority) string {
	switch p {
	case schema.PriorityCritical:
		return criticalColor.Sprint(string(p))
	case schema.PriorityHigh:
		return strainedColor.Sprint(string(p))
	case schema.PriorityMedium:
		return degradedColor.Sprint(string(p))
	default:
		return string(p)
	}
}

// selectOutputFile returns the file handle for output. An empty path means
// stdout.
func selectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// writeWithFile handles the common pattern of opening a file, writing to it,
// and cleaning up. It accepts a writer function that takes an io.Writer.
func writeWithFile(outputFile string, writer func(io.Writer) error) error {
	file, err := selectOutputFile(outputFile)
	if err != nil {
		return err
	}
	// Only close if it's not stdout
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		fmt.Fprintf(os.Stderr, "Wrote report to %s\n", outputFile)
	}
	return nil
}

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// fmtDuration renders a duration at 10ms granularity; sub-10ms waits show as
// the raw value so short waits do not vanish.
func fmtDuration(d time.Duration) string {
	if d >= 10*time.Millisecond {
		return d.Round(10 * time.Millisecond).String()
	}
	return d.String()
}

// truncate shortens a string to maxWidth runes with an ellipsis suffix.
func truncate(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return s
}
