// Package dialog orchestrates conversations: per-user dialog state, intent
// routing, deferred follow-ups and report hand-off to the booking desk.
package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/irislabs/iris/internal/channel"
	"github.com/irislabs/iris/internal/language"
	"github.com/irislabs/iris/internal/models"
	"github.com/irislabs/iris/internal/nlp"
	"github.com/irislabs/iris/internal/report"
	"github.com/irislabs/iris/internal/sched"
	"github.com/irislabs/iris/internal/store"
)

// Job kinds the manager registers with the runner.
const (
	JobAskQuestionSolved = "ask_question_solved"
	JobSendReport        = "send_report"
)

const (
	defaultFollowUpDelay = 60 * time.Second
	defaultReportDelay   = time.Second
)

// followUpPayload is the durable payload of an ask-question-solved job.
type followUpPayload struct {
	UserID      int64           `json:"user_id"`
	RecipientID string          `json:"recipient_id"`
	Channel     models.Channel  `json:"channel"`
	Language    models.Language `json:"language"`
}

// userLocks serializes message handling per user. Handling the same user
// concurrently would race the cancel-then-schedule sequence.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *userLocks) Lock(userID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Opts holds the manager's optional knobs.
type Opts struct {
	FollowUpDelay time.Duration
	ReportDelay   time.Duration
}

// Option configures the Manager.
type Option func(*Opts)

// WithFollowUpDelay overrides the delay before the "question solved?" check.
func WithFollowUpDelay(d time.Duration) Option {
	return func(o *Opts) { o.FollowUpDelay = d }
}

// WithReportDelay overrides the delay before a queued report is delivered.
func WithReportDelay(d time.Duration) Option {
	return func(o *Opts) { o.ReportDelay = d }
}

// Manager routes inbound messages through the state machine and routing
// table and drives all side effects: storage, scheduling, delivery and
// report hand-off.
type Manager struct {
	store      store.Store
	scheduler  sched.Scheduler
	resolver   *language.Resolver
	classifier nlp.Classifier
	adapters   channel.Registry
	reports    report.Sender

	routes        map[models.Intent]Action
	followUpDelay time.Duration
	reportDelay   time.Duration
	locks         *userLocks
}

// NewManager wires a dialog manager from its collaborators.
func NewManager(
	st store.Store,
	scheduler sched.Scheduler,
	resolver *language.Resolver,
	classifier nlp.Classifier,
	adapters channel.Registry,
	reports report.Sender,
	opts ...Option,
) *Manager {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.FollowUpDelay == 0 {
		cfg.FollowUpDelay = defaultFollowUpDelay
	}
	if cfg.ReportDelay == 0 {
		cfg.ReportDelay = defaultReportDelay
	}
	return &Manager{
		store:         st,
		scheduler:     scheduler,
		resolver:      resolver,
		classifier:    classifier,
		adapters:      adapters,
		reports:       reports,
		routes:        Routes(),
		followUpDelay: cfg.FollowUpDelay,
		reportDelay:   cfg.ReportDelay,
		locks:         newUserLocks(),
	}
}

// RegisterJobHandlers binds the manager's deferred job kinds to the runner.
func (m *Manager) RegisterJobHandlers(r *sched.Runner) {
	r.RegisterHandler(JobAskQuestionSolved, m.handleAskQuestionSolved)
	r.RegisterHandler(JobSendReport, m.handleSendReport)
}

// HandleEvent processes one inbound message and returns the intent that was
// acted on. Any message, whatever it says, cancels the user's pending
// deferred task before the message is evaluated.
func (m *Manager) HandleEvent(ctx context.Context, ch models.Channel, recipientID, text, localeHint string) (models.Intent, error) {
	if !models.IsValidChannel(ch) {
		return "", models.ErrUnknownChannel
	}
	adapter, err := m.adapters.Get(ch)
	if err != nil {
		return "", err
	}

	user, err := m.store.GetOrCreateUser(ch, recipientID)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}
	unlock := m.locks.Lock(user.ID)
	defer unlock()

	st, err := m.store.GetUserState(user.ID)
	if err != nil {
		return "", fmt.Errorf("load user state: %w", err)
	}
	if st == nil {
		return "", models.ErrUserNotFound
	}

	m.cancelPending(ctx, user.ID, st)

	if st.State.IsCollecting() {
		return "", m.collect(ctx, adapter, user, st, text)
	}

	lang := m.resolver.Resolve(ctx, text, st.Language, localeHint)
	if lang != st.Language {
		l := lang
		if err := m.store.UpdateUserState(user.ID, store.StatePatch{Language: &l}); err != nil {
			return "", fmt.Errorf("persist language: %w", err)
		}
	}

	userKey := string(ch) + ":" + recipientID
	intent, err := m.classifier.DetectIntent(ctx, userKey, text, lang)
	if err != nil {
		slog.Error("Intent classification failed, using fallback", "error", err, "userID", user.ID)
		intent = models.IntentFallback
	}
	action, ok := m.routes[intent]
	if !ok {
		action = Fallback
	}

	if err := m.apply(ctx, user, action, lang, recipientID); err != nil {
		return intent, err
	}

	name := ""
	if action.Reply == ReplyGreeting {
		if name, err = adapter.DisplayName(ctx, recipientID); err != nil {
			slog.Debug("Display name lookup failed", "error", err, "userID", user.ID)
			name = ""
		}
	}
	m.send(ctx, adapter, user.ID, recipientID, Render(action.Reply, lang, name))

	if intent.ClearsContext() {
		if err := m.classifier.ClearContext(ctx, userKey); err != nil {
			slog.Error("Failed to clear classifier context", "error", err, "userID", user.ID)
		}
	}
	return intent, nil
}

// HandleConversationStarted greets a user who just opened the conversation,
// bypassing classification. The greeting language comes from the channel
// locale, then the stored language, then Spanish.
func (m *Manager) HandleConversationStarted(ctx context.Context, ch models.Channel, recipientID, localeHint string) error {
	if !models.IsValidChannel(ch) {
		return models.ErrUnknownChannel
	}
	adapter, err := m.adapters.Get(ch)
	if err != nil {
		return err
	}
	user, err := m.store.GetOrCreateUser(ch, recipientID)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}
	unlock := m.locks.Lock(user.ID)
	defer unlock()

	st, err := m.store.GetUserState(user.ID)
	if err != nil {
		return fmt.Errorf("load user state: %w", err)
	}
	if st == nil {
		return models.ErrUserNotFound
	}
	m.cancelPending(ctx, user.ID, st)

	lang := language.NormalizeLocale(localeHint)
	if lang == models.LangUnknown {
		lang = st.Language
	}
	if lang == models.LangUnknown {
		lang = models.LangSpanish
	}
	if lang != st.Language {
		l := lang
		if err := m.store.UpdateUserState(user.ID, store.StatePatch{Language: &l}); err != nil {
			return fmt.Errorf("persist language: %w", err)
		}
	}

	name, err := adapter.DisplayName(ctx, recipientID)
	if err != nil {
		slog.Debug("Display name lookup failed", "error", err, "userID", user.ID)
		name = ""
	}
	m.send(ctx, adapter, user.ID, recipientID, Render(ReplyGreeting, lang, name))
	return nil
}

// cancelPending cancels and clears the user's pending deferred task, if any.
// Failures are logged and treated as if no task was pending.
func (m *Manager) cancelPending(ctx context.Context, userID int64, st *models.UserState) {
	if st.TaskID == "" {
		return
	}
	if err := m.scheduler.Cancel(ctx, st.TaskID); err != nil {
		slog.Error("Failed to cancel pending task", "error", err, "userID", userID, "taskID", st.TaskID)
	}
	empty := ""
	if err := m.store.UpdateUserState(userID, store.StatePatch{TaskID: &empty}); err != nil {
		slog.Error("Failed to clear pending task handle", "error", err, "userID", userID)
		return
	}
	st.TaskID = ""
}

// collect consumes a message while the state machine is waiting for input:
// a free-text request or a confirmation number. The message text itself is
// the input; no classification happens.
func (m *Manager) collect(ctx context.Context, adapter channel.Adapter, user models.User, st *models.UserState, text string) error {
	lang := st.Language
	if lang == models.LangUnknown {
		lang = models.LangSpanish
	}

	switch st.State {
	case models.StateWaitFirstRequest, models.StateWaitSecondRequest:
		var sessionID int64
		if sess, err := m.store.LatestSession(user.ID); err != nil {
			return fmt.Errorf("load latest session: %w", err)
		} else if sess != nil {
			sessionID = sess.ID
		}
		if _, err := m.store.AddRequest(user.ID, sessionID, text); err != nil {
			return fmt.Errorf("save request: %w", err)
		}
		if err := m.setState(user.ID, models.StateIdle); err != nil {
			return err
		}
		m.send(ctx, adapter, user.ID, user.SourceID, Render(ReplyAnythingElse, lang, ""))
		return nil

	case models.StateWaitConfirmationNumber:
		sess, err := m.store.LatestSession(user.ID)
		if err != nil {
			return fmt.Errorf("load latest session: %w", err)
		}
		if sess != nil {
			if err := m.store.SetSessionConfirmation(sess.ID, text); err != nil {
				return fmt.Errorf("save confirmation number: %w", err)
			}
		} else {
			slog.Error("Confirmation number arrived without a session", "userID", user.ID)
		}
		if err := m.setState(user.ID, models.StateIdle); err != nil {
			return err
		}
		m.send(ctx, adapter, user.ID, user.SourceID, Render(ReplyAskAnotherRequest, lang, ""))
		return nil
	}
	return fmt.Errorf("collect called in state %s", st.State)
}

// apply performs the action's side effect before anything is sent, so a
// failed persistence aborts the whole turn.
func (m *Manager) apply(ctx context.Context, user models.User, action Action, lang models.Language, recipientID string) error {
	switch action.Effect {
	case EffectNone:
		return nil

	case EffectBeginSession:
		if _, err := m.store.CreateSession(user.ID, action.Dept); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return m.setState(user.ID, models.StateWaitFirstRequest)

	case EffectAwaitRequest:
		return m.setState(user.ID, models.StateWaitFirstRequest)

	case EffectAwaitSecond:
		return m.setState(user.ID, models.StateWaitSecondRequest)

	case EffectAwaitConfirmation:
		return m.setState(user.ID, models.StateWaitConfirmationNumber)

	case EffectFollowUp:
		m.scheduleFollowUp(ctx, user, lang, recipientID)
		return nil

	case EffectFollowUpEnglish:
		if lang == models.LangEnglish {
			m.scheduleFollowUp(ctx, user, lang, recipientID)
		}
		return nil

	case EffectSendReport:
		m.enqueueReport(ctx, user, lang, recipientID)
		return nil
	}
	return nil
}

func (m *Manager) setState(userID int64, s models.DialogState) error {
	if err := m.store.UpdateUserState(userID, store.StatePatch{State: &s}); err != nil {
		return fmt.Errorf("set state %s: %w", s, err)
	}
	return nil
}

// scheduleFollowUp schedules the "question solved?" check and records its
// handle as the user's single pending task. A scheduling failure only logs;
// the user keeps the reply they were owed.
func (m *Manager) scheduleFollowUp(ctx context.Context, user models.User, lang models.Language, recipientID string) {
	payload := followUpPayload{
		UserID:      user.ID,
		RecipientID: recipientID,
		Channel:     user.Channel,
		Language:    lang,
	}
	handle, err := m.scheduler.Schedule(ctx, JobAskQuestionSolved, payload, m.followUpDelay)
	if err != nil {
		slog.Error("Failed to schedule follow-up", "error", err, "userID", user.ID)
		return
	}
	if err := m.store.UpdateUserState(user.ID, store.StatePatch{TaskID: &handle}); err != nil {
		slog.Error("Failed to record follow-up handle", "error", err, "userID", user.ID, "taskID", handle)
		if cerr := m.scheduler.Cancel(ctx, handle); cerr != nil {
			slog.Error("Failed to cancel orphaned follow-up", "error", cerr, "taskID", handle)
		}
	}
}

// enqueueReport snapshots the latest session and queues it for delivery.
// Without a session there is nothing to report.
func (m *Manager) enqueueReport(ctx context.Context, user models.User, lang models.Language, recipientID string) {
	sess, err := m.store.LatestSession(user.ID)
	if err != nil {
		slog.Error("Failed to load session for report", "error", err, "userID", user.ID)
		return
	}
	if sess == nil {
		slog.Error("Report requested without a session", "userID", user.ID)
		return
	}
	requests, err := m.store.SessionRequests(sess.ID)
	if err != nil {
		slog.Error("Failed to load requests for report", "error", err, "sessionID", sess.ID)
		return
	}

	name := ""
	if adapter, aerr := m.adapters.Get(user.Channel); aerr == nil {
		if name, err = adapter.DisplayName(ctx, recipientID); err != nil {
			slog.Debug("Display name lookup failed", "error", err, "userID", user.ID)
			name = ""
		}
	}

	se, re := models.Export(*sess, requests)
	rep := models.Report{
		RecipientID: recipientID,
		Channel:     user.Channel,
		Language:    lang,
		DisplayName: name,
		Session:     se,
		Requests:    re,
	}
	if _, err := m.scheduler.Schedule(ctx, JobSendReport, rep, m.reportDelay); err != nil {
		slog.Error("Failed to enqueue report", "error", err, "userID", user.ID)
	}
}

// send delivers payloads in order. Delivery failures are logged; the state
// transition they accompany stands.
func (m *Manager) send(ctx context.Context, adapter channel.Adapter, userID int64, recipientID string, payloads []models.Payload) {
	for _, p := range payloads {
		if err := adapter.Send(ctx, recipientID, p); err != nil {
			slog.Error("Failed to deliver payload", "error", err, "userID", userID, "kind", p.Kind)
		}
	}
}

// handleAskQuestionSolved fires the deferred follow-up. The job only acts
// when its ID is still the user's current pending handle; a cancelled or
// superseded job is silently dropped.
func (m *Manager) handleAskQuestionSolved(ctx context.Context, job store.Job) error {
	var p followUpPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		return fmt.Errorf("decode follow-up payload: %w", err)
	}
	unlock := m.locks.Lock(p.UserID)
	defer unlock()

	st, err := m.store.GetUserState(p.UserID)
	if err != nil {
		return fmt.Errorf("load user state: %w", err)
	}
	if st == nil || st.TaskID != job.ID {
		slog.Debug("Follow-up superseded, dropping", "jobID", job.ID, "userID", p.UserID)
		return nil
	}

	adapter, err := m.adapters.Get(p.Channel)
	if err != nil {
		return err
	}
	m.send(ctx, adapter, p.UserID, p.RecipientID, Render(ReplyAskQuestionSolved, p.Language, ""))

	empty := ""
	if err := m.store.UpdateUserState(p.UserID, store.StatePatch{TaskID: &empty}); err != nil {
		slog.Error("Failed to clear fired task handle", "error", err, "userID", p.UserID)
	}
	return nil
}

// handleSendReport delivers a queued report snapshot.
func (m *Manager) handleSendReport(ctx context.Context, job store.Job) error {
	var rep models.Report
	if err := json.Unmarshal([]byte(job.PayloadJSON), &rep); err != nil {
		return fmt.Errorf("decode report payload: %w", err)
	}
	return m.reports.Send(ctx, rep)
}
