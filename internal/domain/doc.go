// Package domain models the SafeSea check-in flow.
//
// # Page Flow
//
// A visitor moves through a closed set of pages. Every button press is an
// [Event] and the only legal moves are the rows of the transition table:
//
//	home                --choose_sailor-->  sailor_checkin
//	home                --choose_diver--->  diver_checkin
//	sailor_checkin      --submit_sailor-->  sailor_confirmation
//	diver_checkin       --submit_diver--->  diver_confirmation
//	sailor_confirmation --open_map------->  map
//	diver_confirmation  --open_map------->  map
//
// The map page is terminal. Leaving it means discarding the session and
// starting again at home.
//
// # Coral Data
//
// Coral records come from a zipped CSV with "latitude" and "longitude"
// columns. Rows whose coordinates do not parse, or fall outside
// [-90, 90] x [-180, 180], are dropped before the row limit is applied.
//
// # Sailor Markers
//
// Each session carries up to 100 random coordinates sampled uniformly over
// the whole globe. They are regenerated when the local wall-clock hour
// (date and hour, not hour-of-day) differs from the hour of the last reset.
//
// # Location Resolution
//
// A check-in resolves one coordinate. The name [FixedName] always maps to
// [FixedLocation] without touching the network; any other name costs exactly
// one lookup through a [Locator]. Lookup failures are returned to the caller
// unchanged, there is no fallback coordinate.
package domain
