package lead

// EventKind distinguishes the two tracking signals a mail client produces.
type EventKind string

const (
	EventOpen  EventKind = "open"  // tracking pixel loaded
	EventClick EventKind = "click" // tracked link followed
)

// Event is one tracking signal to run through the state machine.
type Event struct {
	Kind EventKind
	// Marker is set when a click destination is one of the campaign's
	// decision markers: StatusGreen for the interested call-to-action,
	// StatusRed for the unsubscribe link. Zero for ordinary tracked links.
	Marker Status
}

// Outcome is the result of applying an Event to a lead's current state.
// Every accepted event increments the interaction counter; the fields here
// only describe status and open-timestamp effects.
type Outcome struct {
	Next      Status
	Changed   bool // status actually moved; marker moves also trigger the notification
	FirstOpen bool // stamp opened_at
}

// Transition applies one tracking event to the current status.
//
// Opens and ordinary clicks promote an undecided lead to yellow but never
// touch a decided one: green, red and blue are reached only by an explicit
// user action (a marker click or a manual dashboard move) and must not be
// downgraded by a stray open or click. Marker clicks move the lead to the
// marker's status from anywhere.
func Transition(current Status, openedBefore bool, ev Event) Outcome {
	out := Outcome{Next: current}

	switch ev.Kind {
	case EventOpen:
		if !openedBefore {
			out.FirstOpen = true
			if !current.Decided() {
				out.Next = StatusYellow
			}
		}
	case EventClick:
		switch {
		case ev.Marker == StatusGreen:
			out.Next = StatusGreen
		case ev.Marker == StatusRed:
			out.Next = StatusRed
		case !current.Decided():
			out.Next = StatusYellow
		}
	}

	out.Changed = out.Next != current
	return out
}
