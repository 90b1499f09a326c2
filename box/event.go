package box

import (
	"fmt"

	"github.com/arloliu/go-mk312/register"
)

// EventKind tells which fields of an Event are meaningful.
type EventKind uint8

const (
	// EventStatus carries Severity and Message.
	EventStatus EventKind = iota
	// EventTelemetry is emitted after every successful poll cycle.
	EventTelemetry
	// EventModeChanged carries Mode.
	EventModeChanged
	// EventPowerRange carries PowerLevel.
	EventPowerRange
	// EventAdvancedParams is emitted once the advanced parameters were read.
	EventAdvancedParams
	// EventPotsOverride carries PotsOverride.
	EventPotsOverride
	// EventAddressDiscovered carries Address.
	EventAddressDiscovered
)

func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventTelemetry:
		return "telemetry"
	case EventModeChanged:
		return "mode-changed"
	case EventPowerRange:
		return "power-range"
	case EventAdvancedParams:
		return "advanced-params"
	case EventPotsOverride:
		return "pots-override"
	case EventAddressDiscovered:
		return "address-discovered"
	default:
		return "unknown"
	}
}

// Severity grades status events.
type Severity uint8

const (
	SeverityInfo Severity = iota + 1
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a notification from the session worker.
type Event struct {
	Kind EventKind

	Severity Severity
	Message  string

	Mode         register.Mode
	PowerLevel   register.PowerLevel
	PotsOverride bool
	Address      string
}

func (e Event) String() string {
	switch e.Kind {
	case EventStatus:
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Severity, e.Message)
	case EventModeChanged:
		return fmt.Sprintf("%s: %s", e.Kind, e.Mode)
	case EventPowerRange:
		return fmt.Sprintf("%s: %s", e.Kind, e.PowerLevel)
	case EventPotsOverride:
		return fmt.Sprintf("%s: %t", e.Kind, e.PotsOverride)
	case EventAddressDiscovered:
		return fmt.Sprintf("%s: %s", e.Kind, e.Address)
	default:
		return e.Kind.String()
	}
}
