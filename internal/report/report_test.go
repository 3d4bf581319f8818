package report

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/irislabs/iris/internal/models"
)

func TestMailerSend(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	m, err := NewMailer(
		WithServer("smtp.example.com", 587),
		WithFrom("bot@example.com"),
		WithTo("desk@example.com"),
		WithSendMail(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("NewMailer: %v", err)
	}

	rep := models.Report{
		RecipientID: "U1",
		Channel:     models.ChannelSlack,
		Language:    models.LangEnglish,
		DisplayName: "Ada",
		Session: models.SessionExport{
			ID:                 3,
			Department:         models.DepartmentFlight,
			ConfirmationNumber: "ABC123",
			CreatedAt:          time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		},
		Requests: []models.RequestExport{
			{ID: 1, Body: "change my flight"},
			{ID: 2, Body: "add a bag"},
		},
	}
	if err := m.Send(context.Background(), rep); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "bot@example.com" || len(gotTo) != 1 || gotTo[0] != "desk@example.com" {
		t.Errorf("envelope = %q -> %v", gotFrom, gotTo)
	}

	body := string(gotMsg)
	for _, want := range []string{
		"Subject: Report - Ada",
		"Department: Flight",
		"Confirmation number: ABC123",
		"- change my flight",
		"- add a bag",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("mail body missing %q:\n%s", want, body)
		}
	}
}

func TestMailerSubjectFallsBackToRecipient(t *testing.T) {
	var gotMsg []byte
	m, _ := NewMailer(
		WithServer("smtp.example.com", 0),
		WithFrom("bot@example.com"),
		WithTo("desk@example.com"),
		WithSendMail(func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotMsg = msg
			return nil
		}),
	)

	rep := models.Report{RecipientID: "U42", Channel: models.ChannelDiscord, Language: models.LangSpanish}
	if err := m.Send(context.Background(), rep); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(string(gotMsg), "Subject: Report - U42") {
		t.Errorf("subject fallback missing:\n%s", gotMsg)
	}
}

func TestMailerRequiresConfig(t *testing.T) {
	if _, err := NewMailer(WithFrom("a@b"), WithTo("c@d")); err == nil {
		t.Error("missing host must error")
	}
	if _, err := NewMailer(WithServer("h", 25)); err == nil {
		t.Error("missing addresses must error")
	}
}
