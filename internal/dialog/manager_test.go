package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/irislabs/iris/internal/channel"
	"github.com/irislabs/iris/internal/language"
	"github.com/irislabs/iris/internal/models"
	"github.com/irislabs/iris/internal/sched"
	"github.com/irislabs/iris/internal/store"
)

// fakeClassifier returns scripted intents in order.
type fakeClassifier struct {
	intents []models.Intent
	err     error
	cleared []string
	calls   int
}

func (f *fakeClassifier) DetectIntent(ctx context.Context, userKey, text string, lang models.Language) (models.Intent, error) {
	if f.err != nil {
		return models.IntentFallback, f.err
	}
	i := f.calls
	f.calls++
	if i >= len(f.intents) {
		return models.IntentFallback, nil
	}
	return f.intents[i], nil
}

func (f *fakeClassifier) ClearContext(ctx context.Context, userKey string) error {
	f.cleared = append(f.cleared, userKey)
	return nil
}

// fakeAdapter records everything it sends.
type fakeAdapter struct {
	sent    []models.Payload
	name    string
	sendErr error
}

func (f *fakeAdapter) Send(ctx context.Context, recipientID string, p models.Payload) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeAdapter) DisplayName(ctx context.Context, recipientID string) (string, error) {
	return f.name, nil
}

// fakeReporter records delivered reports.
type fakeReporter struct {
	reports []models.Report
}

func (f *fakeReporter) Send(ctx context.Context, r models.Report) error {
	f.reports = append(f.reports, r)
	return nil
}

type fixture struct {
	store      *store.InMemoryStore
	classifier *fakeClassifier
	adapter    *fakeAdapter
	reporter   *fakeReporter
	runner     *sched.Runner
	manager    *Manager
}

func newFixture(t *testing.T, intents ...models.Intent) *fixture {
	t.Helper()
	st := store.NewInMemoryStore()
	cl := &fakeClassifier{intents: intents}
	ad := &fakeAdapter{name: "Ada"}
	rep := &fakeReporter{}
	scheduler := sched.NewJobScheduler(st)
	runner := sched.NewRunner(st)

	m := NewManager(st, scheduler, language.NewResolver(nil), cl,
		channel.Registry{models.ChannelSlack: ad}, rep,
		WithFollowUpDelay(-time.Second), WithReportDelay(-time.Second)) // due immediately
	m.RegisterJobHandlers(runner)

	return &fixture{store: st, classifier: cl, adapter: ad, reporter: rep, runner: runner, manager: m}
}

func (f *fixture) state(t *testing.T) *models.UserState {
	t.Helper()
	u, err := f.store.GetOrCreateUser(models.ChannelSlack, "U1")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	st, err := f.store.GetUserState(u.ID)
	if err != nil || st == nil {
		t.Fatalf("GetUserState: %v", err)
	}
	return st
}

func (f *fixture) handle(t *testing.T, text string) models.Intent {
	t.Helper()
	intent, err := f.manager.HandleEvent(context.Background(), models.ChannelSlack, "U1", text, "es_ES")
	if err != nil {
		t.Fatalf("HandleEvent(%q): %v", text, err)
	}
	return intent
}

func TestFullAssistanceFlow(t *testing.T) {
	f := newFixture(t,
		"manage_booking.flight.make_changes",
		"manage_booking.flight.make_changes - no",
		"manage_booking.flight.make_changes - no - no",
	)

	// Flow start opens a Flight session and waits for the first request.
	f.handle(t, "necesito cambiar mi vuelo")
	if st := f.state(t); st.State != models.StateWaitFirstRequest {
		t.Fatalf("state = %s, want WAIT_FIRST_REQUEST", st.State)
	}

	// The next message is collected verbatim, no classification.
	before := f.classifier.calls
	f.handle(t, "quiero adelantar la vuelta al día 12")
	if f.classifier.calls != before {
		t.Error("collection turn must not classify")
	}
	if st := f.state(t); st.State != models.StateIdle {
		t.Fatalf("state after collection = %s, want IDLE", st.State)
	}

	// "no" answer asks for the confirmation number.
	f.handle(t, "no")
	if st := f.state(t); st.State != models.StateWaitConfirmationNumber {
		t.Fatalf("state = %s, want WAIT_CONFIRMATION_NUMBER", st.State)
	}

	// The number is stored on the session and we return to IDLE.
	f.handle(t, "ABC123")
	if st := f.state(t); st.State != models.StateIdle {
		t.Fatalf("state = %s, want IDLE", st.State)
	}

	// Final "no" queues the report job; running it mails the snapshot.
	f.handle(t, "no, nada más")
	f.runner.ProcessDueJobs(context.Background())
	if len(f.reporter.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(f.reporter.reports))
	}
	rep := f.reporter.reports[0]
	if rep.Session.Department != models.DepartmentFlight {
		t.Errorf("report department = %s", rep.Session.Department)
	}
	if rep.Session.ConfirmationNumber != "ABC123" {
		t.Errorf("report confirmation = %q", rep.Session.ConfirmationNumber)
	}
	if len(rep.Requests) != 1 || rep.Requests[0].Body != "quiero adelantar la vuelta al día 12" {
		t.Errorf("report requests = %+v", rep.Requests)
	}
	if rep.DisplayName != "Ada" {
		t.Errorf("report name = %q", rep.DisplayName)
	}

	// The chained flow ended in "- no - no": classifier context is cleared.
	if len(f.classifier.cleared) != 1 {
		t.Errorf("context clears = %d, want 1", len(f.classifier.cleared))
	}
}

func TestFollowUpFiresWhenUserStaysSilent(t *testing.T) {
	f := newFixture(t, models.IntentQuestion)

	f.handle(t, "tengo una duda")
	st := f.state(t)
	if st.TaskID == "" {
		t.Fatal("question intent must leave a pending task handle")
	}

	f.adapter.sent = nil
	f.runner.ProcessDueJobs(context.Background())

	if len(f.adapter.sent) != 1 || f.adapter.sent[0].Text != "¿Has resuelto tu duda?" {
		t.Fatalf("follow-up payloads = %+v", f.adapter.sent)
	}
	if st := f.state(t); st.TaskID != "" {
		t.Errorf("fired task handle not cleared: %q", st.TaskID)
	}
}

func TestAnyMessageCancelsPendingFollowUp(t *testing.T) {
	f := newFixture(t, models.IntentQuestion, models.IntentThanks)

	f.handle(t, "tengo una duda")
	handle := f.state(t).TaskID
	if handle == "" {
		t.Fatal("no pending task after question")
	}

	// Any new inbound activity cancels the pending follow-up first.
	f.handle(t, "gracias")
	if st := f.state(t); st.TaskID != "" {
		t.Errorf("pending handle survived new activity: %q", st.TaskID)
	}

	f.adapter.sent = nil
	f.runner.ProcessDueJobs(context.Background())
	if len(f.adapter.sent) != 0 {
		t.Errorf("cancelled follow-up still fired: %+v", f.adapter.sent)
	}
}

func TestNewFollowUpSupersedesOld(t *testing.T) {
	f := newFixture(t, models.IntentQuestion, models.IntentQuestion)

	f.handle(t, "tengo una duda")
	first := f.state(t).TaskID
	f.handle(t, "y otra duda")
	second := f.state(t).TaskID

	if first == second || second == "" {
		t.Fatalf("second question must replace the handle: %q -> %q", first, second)
	}

	f.adapter.sent = nil
	f.runner.ProcessDueJobs(context.Background())

	// Only one follow-up message, from the surviving job.
	count := 0
	for _, p := range f.adapter.sent {
		if p.Text == "¿Has resuelto tu duda?" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("follow-up fired %d times, want 1", count)
	}
}

func TestEnglishOnlyFlightQuestionFollowUp(t *testing.T) {
	f := newFixture(t, models.IntentFlightQuestion)
	// Resolver without detector keeps unknown users on Spanish.
	f.handle(t, "una pregunta sobre mi vuelo")
	if st := f.state(t); st.TaskID != "" {
		t.Errorf("Spanish flight question must not schedule a follow-up")
	}

	f2 := newFixture(t, models.IntentFlightQuestion)
	// English stickiness: pre-set the language before the message.
	u, _ := f2.store.GetOrCreateUser(models.ChannelSlack, "U1")
	lang := models.LangEnglish
	if err := f2.store.UpdateUserState(u.ID, store.StatePatch{Language: &lang}); err != nil {
		t.Fatalf("seed language: %v", err)
	}
	f2.handle(t, "question")
	if st := f2.state(t); st.TaskID == "" {
		t.Errorf("English flight question must schedule a follow-up")
	}
}

func TestClassifierFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	f.classifier.err = errors.New("model unavailable")

	intent, err := f.manager.HandleEvent(context.Background(), models.ChannelSlack, "U1", "hola", "")
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if intent != models.IntentFallback {
		t.Errorf("intent = %q, want fallback", intent)
	}
	if st := f.state(t); st.State != models.StateIdle {
		t.Errorf("classifier failure must not transition, state = %s", st.State)
	}
	if len(f.adapter.sent) == 0 {
		t.Error("fallback reply was not sent")
	}
}

func TestDeliveryFailureKeepsState(t *testing.T) {
	f := newFixture(t, "manage_booking.hotel.make_changes")
	f.adapter.sendErr = errors.New("channel down")

	if _, err := f.manager.HandleEvent(context.Background(), models.ChannelSlack, "U1", "ayuda con mi hotel", ""); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if st := f.state(t); st.State != models.StateWaitFirstRequest {
		t.Errorf("state after delivery failure = %s, want WAIT_FIRST_REQUEST", st.State)
	}
}

func TestUnknownChannelRejected(t *testing.T) {
	f := newFixture(t)
	if _, err := f.manager.HandleEvent(context.Background(), "telegram", "U1", "hola", ""); !errors.Is(err, models.ErrUnknownChannel) {
		t.Errorf("err = %v, want ErrUnknownChannel", err)
	}
	if _, err := f.manager.HandleEvent(context.Background(), models.ChannelDiscord, "U1", "hola", ""); !errors.Is(err, models.ErrNoAdapter) {
		t.Errorf("err = %v, want ErrNoAdapter", err)
	}
}

func TestConversationStartedGreets(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.HandleConversationStarted(context.Background(), models.ChannelSlack, "U1", "en_US"); err != nil {
		t.Fatalf("HandleConversationStarted: %v", err)
	}
	if f.classifier.calls != 0 {
		t.Error("conversation start must bypass the classifier")
	}
	if len(f.adapter.sent) != 2 {
		t.Fatalf("greeting payloads = %d, want 2", len(f.adapter.sent))
	}
	if st := f.state(t); st.Language != models.LangEnglish {
		t.Errorf("locale hint not persisted, language = %q", st.Language)
	}
}

func TestConversationStartedCancelsPendingFollowUp(t *testing.T) {
	f := newFixture(t, models.IntentQuestion)

	f.handle(t, "tengo una duda")
	if f.state(t).TaskID == "" {
		t.Fatal("no pending task after question")
	}

	// Reopening the conversation is inbound activity like any other.
	if err := f.manager.HandleConversationStarted(context.Background(), models.ChannelSlack, "U1", "es_ES"); err != nil {
		t.Fatalf("HandleConversationStarted: %v", err)
	}
	if st := f.state(t); st.TaskID != "" {
		t.Errorf("pending handle survived conversation start: %q", st.TaskID)
	}

	f.adapter.sent = nil
	f.runner.ProcessDueJobs(context.Background())
	if len(f.adapter.sent) != 0 {
		t.Errorf("cancelled follow-up still fired: %+v", f.adapter.sent)
	}
}

func TestConversationStartedPrefersChannelLocale(t *testing.T) {
	f := newFixture(t, models.IntentThanks)

	// Returning user with a stored Spanish preference.
	f.handle(t, "gracias")
	if st := f.state(t); st.Language != models.LangSpanish {
		t.Fatalf("language = %q, want es", st.Language)
	}

	f.adapter.sent = nil
	if err := f.manager.HandleConversationStarted(context.Background(), models.ChannelSlack, "U1", "en_US"); err != nil {
		t.Fatalf("HandleConversationStarted: %v", err)
	}
	if len(f.adapter.sent) == 0 || !strings.HasPrefix(f.adapter.sent[0].Text, "Hi ") {
		t.Errorf("greeting payloads = %+v, want English greeting", f.adapter.sent)
	}
	if st := f.state(t); st.Language != models.LangEnglish {
		t.Errorf("language = %q, want en after en_US conversation start", st.Language)
	}
}

func TestLanguageStickinessAcrossTurns(t *testing.T) {
	f := newFixture(t, models.IntentGreeting, models.IntentThanks)
	det := &scriptedDetector{langs: []models.Language{models.LangEnglish}}
	f.manager.resolver = language.NewResolver(det)

	f.handle(t, "hello there")
	if st := f.state(t); st.Language != models.LangEnglish {
		t.Fatalf("language = %q, want en", st.Language)
	}

	// A neutral single word keeps the sticky language without detection.
	f.handle(t, "no")
	if st := f.state(t); st.Language != models.LangEnglish {
		t.Errorf("neutral word flipped language to %q", st.Language)
	}
	if det.calls != 1 {
		t.Errorf("detector calls = %d, want 1", det.calls)
	}
}

type scriptedDetector struct {
	langs []models.Language
	calls int
}

func (s *scriptedDetector) Detect(ctx context.Context, text string) (models.Language, error) {
	i := s.calls
	s.calls++
	if i >= len(s.langs) {
		return models.LangUnknown, errors.New("exhausted")
	}
	return s.langs[i], nil
}

func TestFollowUpPayloadRoundTrip(t *testing.T) {
	p := followUpPayload{UserID: 7, RecipientID: "U1", Channel: models.ChannelSlack, Language: models.LangEnglish}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got followUpPayload
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != p {
		t.Errorf("round trip = %+v, want %+v", got, p)
	}
}
