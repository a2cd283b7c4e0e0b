// Package style provides shared UI styling primitives including brand colors
// and icons for consistent visual presentation across the CLI.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/splitup/internal/core/domain"
)

// Brand Colors.
var (
	Iris   = lipgloss.Color("#8B5CF6")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
	Blue   = lipgloss.Color("#2F80ED")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Dot     = "●"
	Circle  = "○"
	Arrow   = "→"
	Eye     = "◎"
)

// TaskIcon returns the glyph and color used to render a task status record.
func TaskIcon(state domain.TaskState) (string, lipgloss.Color) {
	switch state {
	case domain.TaskPending:
		return Circle, Slate
	case domain.TaskAssigned:
		return Dot, Blue
	case domain.TaskInProgress:
		return Dot, Iris
	case domain.TaskCompleted, domain.TaskVerified:
		return Check, Green
	case domain.TaskFailed:
		return Cross, Red
	case domain.TaskPendingVerification:
		return Eye, Yellow
	default:
		return Warning, Yellow
	}
}

// ExecutionColor returns the color used for an execution's overall status.
func ExecutionColor(status domain.ExecutionStatus) lipgloss.Color {
	switch status {
	case domain.ExecutionCompleted:
		return Green
	case domain.ExecutionFailed:
		return Red
	case domain.ExecutionCanceled:
		return Yellow
	case domain.ExecutionInProgress:
		return Iris
	default:
		return Slate
	}
}
