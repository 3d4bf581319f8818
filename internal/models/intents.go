package models

import "strings"

// Intent is the symbolic label the classifier assigns to a turn, including
// chained yes/no branch suffixes (e.g. "manage_booking.flight.cancel - no").
type Intent string

// IntentFallback is returned when no intent matches or classification fails.
const IntentFallback Intent = "Default Fallback Intent"

// Conversational intents without a booking topic.
const (
	IntentGreeting   Intent = "greeting"
	IntentThanks     Intent = "thanks"
	IntentStartAgain Intent = "start_again"

	IntentQuestion    Intent = "question"
	IntentQuestionYes Intent = "question - yes"
	IntentQuestionNo  Intent = "question - no"

	IntentNewReservation            Intent = "new_reservation"
	IntentNewReservationHotel       Intent = "new_reservation.hotel"
	IntentNewReservationFlight      Intent = "new_reservation.flight"
	IntentNewReservationFlightHotel Intent = "new_reservation.flight_hotel"
	IntentNewReservationTrip        Intent = "new_reservation - viaje"

	IntentManageBooking Intent = "manage_booking"
)

// Booking topics. Each topic carries cancel / make_changes /
// on_spot_assistance flows with chained yes/no leaves, plus a question
// branch; the hotel cancel flow is self-service and has no chained flow.
const (
	TopicHotel       = "manage_booking.hotel"
	TopicFlight      = "manage_booking.flight"
	TopicFlightHotel = "manage_booking.flight_hotel"
)

// Flight-specific question leaves (Spanish help-desk branches).
const (
	IntentFlightQuestion         Intent = "manage_booking.flight.question"
	IntentFlightQuestionBaggage  Intent = "manage_booking.flight.question - equipaje"
	IntentFlightQuestionCheckin  Intent = "manage_booking.flight.question - checkin"
	IntentFlightQuestionOther    Intent = "manage_booking.flight.question - otras"
	IntentFlightQuestionOtherYes Intent = "manage_booking.flight.question - otras - yes"
	IntentFlightQuestionOtherNo  Intent = "manage_booking.flight.question - otras - no"
)

// Hotel cancel flow (self-service, resolved with a yes/no leaf).
const (
	IntentHotelCancel    Intent = "manage_booking.hotel.cancel"
	IntentHotelCancelYes Intent = "manage_booking.hotel.cancel - yes"
	IntentHotelCancelNo  Intent = "manage_booking.hotel.cancel - no"
)

// Topic returns the booking topic prefix of the intent, or "" if the intent
// is not a manage-booking flow.
func (i Intent) Topic() string {
	for _, t := range []string{TopicFlightHotel, TopicFlight, TopicHotel} {
		if strings.HasPrefix(string(i), t) {
			return t
		}
	}
	return ""
}

// ClearsContext reports whether acting on this intent must be followed by an
// explicit classifier context clear, so stale multi-turn context does not
// leak into the next conversation. The rule is suffix-based: branches that
// end in two consecutive "no" answers, a plain yes/no resolution of a
// question, or the hotel-cancellation yes/no leaf.
func (i Intent) ClearsContext() bool {
	s := string(i)
	return strings.HasSuffix(s, "- no - no") ||
		strings.HasSuffix(s, ".question - yes") ||
		strings.HasSuffix(s, ".question - no") ||
		strings.HasSuffix(s, ".hotel.cancel - yes") ||
		strings.HasSuffix(s, ".hotel.cancel - no")
}

// KnownIntents returns the closed enumeration of intents the router handles,
// excluding the fallback. The routing table is validated for completeness
// against this list.
func KnownIntents() []Intent {
	intents := []Intent{
		IntentGreeting, IntentThanks, IntentStartAgain,
		IntentQuestion, IntentQuestionYes, IntentQuestionNo,
		IntentNewReservation, IntentNewReservationHotel, IntentNewReservationFlight,
		IntentNewReservationFlightHotel, IntentNewReservationTrip,
		IntentManageBooking,
		Intent(TopicHotel), Intent(TopicFlight), Intent(TopicFlightHotel),
		IntentFlightQuestion, IntentFlightQuestionBaggage, IntentFlightQuestionCheckin,
		IntentFlightQuestionOther, IntentFlightQuestionOtherYes, IntentFlightQuestionOtherNo,
		IntentHotelCancel, IntentHotelCancelYes, IntentHotelCancelNo,
	}
	// Chained flows shared by every topic. Hotel cancel is self-service and
	// enumerated above instead.
	for _, topic := range []string{TopicHotel, TopicFlight, TopicFlightHotel} {
		flows := []string{"make_changes", "on_spot_assistance"}
		if topic != TopicHotel {
			flows = append(flows, "cancel")
		}
		for _, flow := range flows {
			base := topic + "." + flow
			intents = append(intents,
				Intent(base),
				Intent(base+" - yes"),
				Intent(base+" - no"),
				Intent(base+" - no - yes"),
				Intent(base+" - no - no"),
			)
		}
	}
	// Topic-level question branches; the flight one has its own leaves.
	intents = append(intents,
		Intent(TopicHotel+".question"),
		Intent(TopicHotel+".question - yes"),
		Intent(TopicHotel+".question - no"),
		Intent(TopicFlightHotel+".question"),
		Intent(TopicFlightHotel+".question - yes"),
		Intent(TopicFlightHotel+".question - no"),
		Intent(TopicFlight+".question - yes"),
		Intent(TopicFlight+".question - no"),
	)
	return intents
}
