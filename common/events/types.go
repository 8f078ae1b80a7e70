package events

const (
	// Streams
	RosterEventsStream = "ROSTER_EVENTS"

	// Events
	RosterRegistered     = "events.roster.registered"
	RosterCancelled      = "events.roster.cancelled"
	RosterPromoted       = "events.roster.promoted"
	RosterReset          = "events.roster.reset"
	RosterResetRequested = "events.roster.resetRequested"

	// Event Wildcards
	RosterEventsWildcard = "events.roster.*"
)
