package dialog

import (
	"strings"
	"testing"

	"github.com/irislabs/iris/internal/models"
)

func TestRoutesCoverEveryKnownIntent(t *testing.T) {
	routes := Routes()
	for _, intent := range models.KnownIntents() {
		action, ok := routes[intent]
		if !ok {
			t.Errorf("no route for intent %q", intent)
			continue
		}
		if action.Reply == ReplyNone {
			t.Errorf("intent %q routes to an empty reply", intent)
		}
	}
}

func TestRoutesHaveNoStrays(t *testing.T) {
	known := make(map[models.Intent]struct{})
	for _, in := range models.KnownIntents() {
		known[in] = struct{}{}
	}
	for intent := range Routes() {
		if _, ok := known[intent]; !ok {
			t.Errorf("route for unknown intent %q", intent)
		}
	}
}

func TestFlowRoutes(t *testing.T) {
	routes := Routes()
	cases := []struct {
		intent models.Intent
		effect Effect
		dept   models.Department
		reply  ReplyKind
	}{
		{"manage_booking.flight.cancel", EffectBeginSession, models.DepartmentFlight, ReplyHowCanWeHelp},
		{"manage_booking.hotel.make_changes", EffectBeginSession, models.DepartmentHotel, ReplyHowCanWeHelp},
		{"manage_booking.flight_hotel.on_spot_assistance", EffectBeginSession, models.DepartmentFlightHotel, ReplyHowCanWeHelp},
		{"manage_booking.flight.cancel - yes", EffectAwaitRequest, "", ReplyHowCanWeHelp},
		{"manage_booking.flight.cancel - no", EffectAwaitConfirmation, "", ReplyAskConfirmationNumber},
		{"manage_booking.flight.cancel - no - yes", EffectAwaitSecond, "", ReplyHowCanWeHelp},
		{"manage_booking.flight.cancel - no - no", EffectSendReport, "", ReplySentRequest},
		{models.IntentQuestion, EffectFollowUp, "", ReplyHaveQuestion},
		{models.IntentFlightQuestion, EffectFollowUpEnglish, "", ReplyFlightQuestion},
		{models.IntentFlightQuestionOther, EffectFollowUp, "", ReplyFlightOther},
		{models.IntentHotelCancel, EffectFollowUp, "", ReplySelfServiceCancel},
		{models.IntentGreeting, EffectNone, "", ReplyGreeting},
		{models.Intent(models.TopicHotel), EffectNone, "", ReplyBookingOptions},
	}
	for _, c := range cases {
		a, ok := routes[c.intent]
		if !ok {
			t.Errorf("no route for %q", c.intent)
			continue
		}
		if a.Effect != c.effect || a.Dept != c.dept || a.Reply != c.reply {
			t.Errorf("route %q = %+v, want effect=%v dept=%q reply=%q", c.intent, a, c.effect, c.dept, c.reply)
		}
	}
}

func TestRenderBilingual(t *testing.T) {
	for _, kind := range []ReplyKind{
		ReplyDefaultError, ReplyGreeting, ReplyThanks, ReplyStartOver,
		ReplyNewReservation, ReplyManageBooking, ReplyBookingOptions,
		ReplyHowCanWeHelp, ReplyAskConfirmationNumber, ReplyAnythingElse,
		ReplyAskAnotherRequest, ReplyHaveQuestion, ReplyQuestionSolvedYes,
		ReplyQuestionSolvedNo, ReplySelfServiceCancel, ReplySentRequest,
		ReplyAskQuestionSolved,
	} {
		for _, lang := range []models.Language{models.LangEnglish, models.LangSpanish} {
			payloads := Render(kind, lang, "Ada")
			if len(payloads) == 0 {
				t.Errorf("Render(%q, %q) returned no payloads", kind, lang)
			}
		}
	}
	if got := Render(ReplyNone, models.LangEnglish, ""); got != nil {
		t.Errorf("Render(none) = %v, want nil", got)
	}
}

func TestGreetingUsesName(t *testing.T) {
	payloads := Render(ReplyGreeting, models.LangEnglish, "Ada")
	if len(payloads) != 2 {
		t.Fatalf("greeting payloads = %d, want 2", len(payloads))
	}
	if !strings.HasPrefix(payloads[0].Text, "Hi Ada") {
		t.Errorf("greeting text = %q", payloads[0].Text)
	}
}

func TestAskQuestionSolvedChips(t *testing.T) {
	en := Render(ReplyAskQuestionSolved, models.LangEnglish, "")[0]
	if en.Text != "Have been your question solved?" {
		t.Errorf("en text = %q", en.Text)
	}
	if len(en.QuickReplies) != 2 || en.QuickReplies[0] != "Yes" || en.QuickReplies[1] != "No" {
		t.Errorf("en chips = %v", en.QuickReplies)
	}

	es := Render(ReplyAskQuestionSolved, models.LangSpanish, "")[0]
	if es.Text != "¿Has resuelto tu duda?" {
		t.Errorf("es text = %q", es.Text)
	}
	if len(es.QuickReplies) != 2 || es.QuickReplies[0] != "Si" {
		t.Errorf("es chips = %v", es.QuickReplies)
	}
}
