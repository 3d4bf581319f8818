package whatsapp

import (
	"context"
	"strings"
	"testing"

	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/irislabs/iris/internal/models"
)

type fakeAPI struct {
	params []*twilioapi.CreateMessageParams
}

func (f *fakeAPI) CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error) {
	f.params = append(f.params, params)
	sid := "SM123"
	return &twilioapi.ApiV2010Message{Sid: &sid}, nil
}

func TestSendPrefixesWhatsAppScheme(t *testing.T) {
	api := &fakeAPI{}
	a, err := NewAdapter(WithFrom("+14155238886"), WithAPI(api))
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}

	if err := a.Send(context.Background(), "+34600111222", models.TextPayload("hola")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(api.params) != 1 {
		t.Fatalf("messages sent = %d", len(api.params))
	}
	p := api.params[0]
	if p.To == nil || *p.To != "whatsapp:+34600111222" {
		t.Errorf("to = %v", p.To)
	}
	if p.From == nil || *p.From != "whatsapp:+14155238886" {
		t.Errorf("from = %v", p.From)
	}
	if p.Body == nil || *p.Body != "hola" {
		t.Errorf("body = %v", p.Body)
	}
}

func TestSendValidation(t *testing.T) {
	a, _ := NewAdapter(WithFrom("+1"), WithAPI(&fakeAPI{}))
	if err := a.Send(context.Background(), "", models.TextPayload("x")); err != models.ErrEmptyRecipient {
		t.Errorf("empty recipient err = %v", err)
	}
	if err := a.Send(context.Background(), "+34", models.TextPayload("")); err != models.ErrEmptyMessage {
		t.Errorf("empty message err = %v", err)
	}
}

func TestRenderTextDegradesRichPayloads(t *testing.T) {
	link := renderText(models.LinkPayload("See our FAQs", "Help Center", "https://destinia.com/m/faqs"))
	if !strings.Contains(link, "Help Center: https://destinia.com/m/faqs") {
		t.Errorf("link render = %q", link)
	}

	chips := renderText(models.QuickRepliesPayload("Anything else?", "Yes", "No"))
	if !strings.Contains(chips, "Yes / No") {
		t.Errorf("quick replies render = %q", chips)
	}

	list := renderText(models.ListPayload("Deals",
		models.ListItem{Title: "Hotels", Subtitle: "Best prices", URL: "https://destinia.com/hotels/es"},
		models.ListItem{Title: "Flights"},
	))
	if !strings.Contains(list, "1. Hotels (Best prices) https://destinia.com/hotels/es") {
		t.Errorf("list render = %q", list)
	}
	if !strings.Contains(list, "2. Flights") {
		t.Errorf("list render = %q", list)
	}
}
