package domain

import "fmt"

// Page identifies one of the mutually exclusive screens.
type Page string

const (
	PageHome               Page = "home"
	PageSailorCheckin      Page = "sailor_checkin"
	PageDiverCheckin       Page = "diver_checkin"
	PageSailorConfirmation Page = "sailor_confirmation"
	PageDiverConfirmation  Page = "diver_confirmation"
	PageMap                Page = "map"
)

// Event is a user action that may move the session to another page.
type Event string

const (
	EventChooseSailor Event = "choose_sailor"
	EventChooseDiver  Event = "choose_diver"
	EventSubmitSailor Event = "submit_sailor"
	EventSubmitDiver  Event = "submit_diver"
	EventOpenMap      Event = "open_map"
)

type transitionKey struct {
	from  Page
	event Event
}

// transitions is the complete page graph. Anything not listed is rejected.
var transitions = map[transitionKey]Page{
	{PageHome, EventChooseSailor}:         PageSailorCheckin,
	{PageHome, EventChooseDiver}:          PageDiverCheckin,
	{PageSailorCheckin, EventSubmitSailor}: PageSailorConfirmation,
	{PageDiverCheckin, EventSubmitDiver}:   PageDiverConfirmation,
	{PageSailorConfirmation, EventOpenMap}: PageMap,
	{PageDiverConfirmation, EventOpenMap}:  PageMap,
}

// Pages lists every page in flow order.
var Pages = []Page{
	PageHome,
	PageSailorCheckin,
	PageDiverCheckin,
	PageSailorConfirmation,
	PageDiverConfirmation,
	PageMap,
}

// Next returns the page reached from p by e.
func Next(p Page, e Event) (Page, error) {
	next, ok := transitions[transitionKey{p, e}]
	if !ok {
		return p, fmt.Errorf("%w: %q on page %q", ErrInvalidTransition, e, p)
	}
	return next, nil
}

// AllowedEvents returns the events accepted on page p.
func AllowedEvents(p Page) []Event {
	var events []Event
	for _, e := range []Event{EventChooseSailor, EventChooseDiver, EventSubmitSailor, EventSubmitDiver, EventOpenMap} {
		if _, ok := transitions[transitionKey{p, e}]; ok {
			events = append(events, e)
		}
	}
	return events
}

// ParsePage validates a page label.
func ParsePage(s string) (Page, error) {
	for _, p := range Pages {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown page %q", s)
}

// ParseEvent validates an event label.
func ParseEvent(s string) (Event, error) {
	switch e := Event(s); e {
	case EventChooseSailor, EventChooseDiver, EventSubmitSailor, EventSubmitDiver, EventOpenMap:
		return e, nil
	default:
		return "", fmt.Errorf("unknown event %q", s)
	}
}

// IsCheckin reports whether the event submits a check-in form.
func (e Event) IsCheckin() bool {
	return e == EventSubmitSailor || e == EventSubmitDiver
}

// Role returns the role a check-in event submits for.
func (e Event) Role() Role {
	if e == EventSubmitDiver {
		return RoleDiver
	}
	return RoleSailor
}
