// Package provider turns provider maintenance notifications into
// classified, structured events.
//
// Each circuit vendor is a Provider: it knows how to select its own mail,
// classify a message into an Operation, and extract either a full Notice
// (new maintenances and reschedules) or a Transition (everything else).
package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/source"
)

// Operation is what a notification asks the reconciler to do.
type Operation int

const (
	OpNew Operation = iota + 1
	OpUpdate
	OpStart
	OpEnd
	OpCancel
	OpReschedule
	OpIgnore
)

func (o Operation) String() string {
	switch o {
	case OpNew:
		return "new"
	case OpUpdate:
		return "update"
	case OpStart:
		return "start"
	case OpEnd:
		return "end"
	case OpCancel:
		return "cancel"
	case OpReschedule:
		return "reschedule"
	case OpIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("operation(%d)", int(o))
	}
}

// CircuitImpact is one affected circuit of a notice.
type CircuitImpact struct {
	CircuitID string
	ASide     string
	ZSide     string
	Impact    string
	// Dates are calendar dates at UTC midnight.
	Dates []time.Time
}

// Notice is the normalized content of a new (or rescheduled) maintenance.
type Notice struct {
	TicketID string
	Start    model.TimeOfDay
	End      model.TimeOfDay
	// Timezone is an IANA zone name.
	Timezone string
	Location string
	Reason   string
	Circuits []CircuitImpact
}

// Transition identifies the ticket a non-new notification refers to.
type Transition struct {
	TicketID string
	// Comment is the text recorded for OpUpdate.
	Comment string
}

// Provider is a circuit vendor's notification format.
type Provider interface {
	// Name is the stable provider identifier, e.g. "zayo".
	Name() string

	// Type is the service category persisted on the Provider row.
	Type() model.ProviderType

	// Match selects this provider's mail.
	Match() source.Match

	// Classify decides the operation, or returns a *ParsingError when the
	// message cannot be classified.
	Classify(msg *source.Message) (Operation, error)

	// ExtractNew extracts a full notice. Used for OpNew and OpReschedule.
	ExtractNew(msg *source.Message) (*Notice, error)

	// ExtractTransition resolves the ticket (and comment) of any operation
	// other than OpNew and OpIgnore. For OpReschedule it names the ticket
	// being superseded.
	ExtractTransition(msg *source.Message, op Operation) (*Transition, error)
}

// Event is a fully parsed notification.
type Event struct {
	Op         Operation
	Notice     *Notice
	Transition *Transition
}

// Parse classifies msg and runs the matching extractors.
func Parse(p Provider, msg *source.Message) (*Event, error) {
	op, err := p.Classify(msg)
	if err != nil {
		return nil, err
	}

	ev := &Event{Op: op}
	switch op {
	case OpIgnore:
		return ev, nil
	case OpNew:
		if ev.Notice, err = p.ExtractNew(msg); err != nil {
			return nil, err
		}
	case OpReschedule:
		if ev.Transition, err = p.ExtractTransition(msg, op); err != nil {
			return nil, err
		}
		if ev.Notice, err = p.ExtractNew(msg); err != nil {
			return nil, err
		}
	default:
		if ev.Transition, err = p.ExtractTransition(msg, op); err != nil {
			return nil, err
		}
	}
	return ev, nil
}

// Validate checks the mandatory notice fields shared by every format.
func (n *Notice) Validate(provider string) error {
	if strings.TrimSpace(n.TicketID) == "" {
		return Missing(provider, "maintenance id")
	}
	if len(n.Circuits) == 0 {
		return Missing(provider, "circuit list")
	}
	for _, c := range n.Circuits {
		if strings.TrimSpace(c.CircuitID) == "" {
			return Missing(provider, "circuit id")
		}
		if strings.TrimSpace(c.Impact) == "" {
			return Missing(provider, "impact")
		}
		if len(c.Dates) == 0 {
			return Missing(provider, "maintenance date")
		}
	}
	if _, err := model.LoadLocation(n.Timezone); err != nil {
		return Invalid(provider, "timezone", err)
	}
	return nil
}
