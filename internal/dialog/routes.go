package dialog

import "github.com/irislabs/iris/internal/models"

// Effect is the state-machine side effect an intent triggers alongside its
// reply.
type Effect int

const (
	// EffectNone leaves the dialog state untouched.
	EffectNone Effect = iota
	// EffectBeginSession opens a session for the action's department and
	// starts collecting the first request.
	EffectBeginSession
	// EffectAwaitRequest starts collecting a request without a new session.
	EffectAwaitRequest
	// EffectAwaitSecond starts collecting a follow-up request.
	EffectAwaitSecond
	// EffectAwaitConfirmation starts collecting a confirmation number.
	EffectAwaitConfirmation
	// EffectFollowUp schedules the deferred "question solved?" check.
	EffectFollowUp
	// EffectFollowUpEnglish schedules the check only for English users; the
	// Spanish flight-question reply branches into sub-topics instead.
	EffectFollowUpEnglish
	// EffectSendReport snapshots the latest session and mails it to the
	// booking desk.
	EffectSendReport
)

// Action pairs an intent's reply with its side effect. Dept is only set for
// EffectBeginSession.
type Action struct {
	Reply  ReplyKind
	Effect Effect
	Dept   models.Department
}

// Fallback is the action for unclassifiable messages.
var Fallback = Action{Reply: ReplyDefaultError}

var topicDepartments = map[string]models.Department{
	models.TopicHotel:       models.DepartmentHotel,
	models.TopicFlight:      models.DepartmentFlight,
	models.TopicFlightHotel: models.DepartmentFlightHotel,
}

// Routes builds the full intent routing table. Every intent in the closed
// set maps to exactly one action; unknown intents fall back.
func Routes() map[models.Intent]Action {
	r := map[models.Intent]Action{
		models.IntentGreeting:   {Reply: ReplyGreeting},
		models.IntentThanks:     {Reply: ReplyThanks},
		models.IntentStartAgain: {Reply: ReplyStartOver},

		models.IntentQuestion:    {Reply: ReplyHaveQuestion, Effect: EffectFollowUp},
		models.IntentQuestionYes: {Reply: ReplyQuestionSolvedYes},
		models.IntentQuestionNo:  {Reply: ReplyQuestionSolvedNo},

		models.IntentNewReservation:            {Reply: ReplyNewReservation},
		models.IntentNewReservationHotel:       {Reply: ReplyNewReservationHotel},
		models.IntentNewReservationFlight:      {Reply: ReplyNewReservationFlight},
		models.IntentNewReservationFlightHotel: {Reply: ReplyNewReservationFlightHotel},
		models.IntentNewReservationTrip:        {Reply: ReplyNewReservationTrip},

		models.IntentManageBooking: {Reply: ReplyManageBooking},

		models.IntentFlightQuestion:         {Reply: ReplyFlightQuestion, Effect: EffectFollowUpEnglish},
		models.IntentFlightQuestionBaggage:  {Reply: ReplyFlightBaggage},
		models.IntentFlightQuestionCheckin:  {Reply: ReplyFlightCheckin},
		models.IntentFlightQuestionOther:    {Reply: ReplyFlightOther, Effect: EffectFollowUp},
		models.IntentFlightQuestionOtherYes: {Reply: ReplyQuestionSolvedYes},
		models.IntentFlightQuestionOtherNo:  {Reply: ReplyQuestionSolvedNo},

		models.IntentHotelCancel:    {Reply: ReplySelfServiceCancel, Effect: EffectFollowUp},
		models.IntentHotelCancelYes: {Reply: ReplyQuestionSolvedYes},
		models.IntentHotelCancelNo:  {Reply: ReplyQuestionSolvedNo},
	}

	for topic, dept := range topicDepartments {
		r[models.Intent(topic)] = Action{Reply: ReplyBookingOptions}

		flows := []string{"make_changes", "on_spot_assistance"}
		if topic != models.TopicHotel {
			flows = append(flows, "cancel")
		}
		for _, flow := range flows {
			base := topic + "." + flow
			r[models.Intent(base)] = Action{Reply: ReplyHowCanWeHelp, Effect: EffectBeginSession, Dept: dept}
			r[models.Intent(base+" - yes")] = Action{Reply: ReplyHowCanWeHelp, Effect: EffectAwaitRequest}
			r[models.Intent(base+" - no")] = Action{Reply: ReplyAskConfirmationNumber, Effect: EffectAwaitConfirmation}
			r[models.Intent(base+" - no - yes")] = Action{Reply: ReplyHowCanWeHelp, Effect: EffectAwaitSecond}
			r[models.Intent(base+" - no - no")] = Action{Reply: ReplySentRequest, Effect: EffectSendReport}
		}
	}

	// Topic question branches. The flight one is enumerated above with its
	// sub-topic leaves; hotel and flight+hotel share the generic pair.
	for _, topic := range []string{models.TopicHotel, models.TopicFlightHotel} {
		r[models.Intent(topic+".question")] = Action{Reply: ReplyHaveQuestion, Effect: EffectFollowUp}
	}
	for _, topic := range []string{models.TopicHotel, models.TopicFlight, models.TopicFlightHotel} {
		r[models.Intent(topic+".question - yes")] = Action{Reply: ReplyQuestionSolvedYes}
		r[models.Intent(topic+".question - no")] = Action{Reply: ReplyQuestionSolvedNo}
	}

	return r
}
