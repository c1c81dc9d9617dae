package codec

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/nhle/mailvault/internal/model"
)

func TestBuildParse_RoundTrip(t *testing.T) {
	msg := model.OutgoingMessage{
		From:       "sender@x.com",
		Recipients: []string{"r1@x.com", "r2@x.com"},
		Subject:    "S",
		Body:       "B",
		Attachments: []model.Attachment{
			{Filename: "report.pdf", MIMEType: "application/pdf", Data: []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff}},
			{Filename: "notes.txt", Data: []byte("plain attachment")},
		},
	}

	raw, err := Build(msg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got.From != msg.From {
		t.Errorf("From = %q, want %q", got.From, msg.From)
	}
	if !reflect.DeepEqual(got.Recipients, msg.Recipients) {
		t.Errorf("Recipients = %v, want %v", got.Recipients, msg.Recipients)
	}
	if got.Subject != msg.Subject {
		t.Errorf("Subject = %q, want %q", got.Subject, msg.Subject)
	}
	if got.Body != msg.Body {
		t.Errorf("Body = %q, want %q", got.Body, msg.Body)
	}
	if got.MessageID == "" {
		t.Error("MessageID not set")
	}

	if len(got.Attachments) != len(msg.Attachments) {
		t.Fatalf("got %d attachments, want %d", len(got.Attachments), len(msg.Attachments))
	}
	for i, att := range msg.Attachments {
		if got.Attachments[i].Filename != att.Filename {
			t.Errorf("attachment[%d].Filename = %q, want %q", i, got.Attachments[i].Filename, att.Filename)
		}
		if !bytes.Equal(got.Attachments[i].Data, att.Data) {
			t.Errorf("attachment[%d] data mismatch", i)
		}
	}
}

func TestBuildParse_BodyOnly(t *testing.T) {
	msg := model.OutgoingMessage{
		From:       "sender@x.com",
		Recipients: []string{"r1@x.com"},
		Subject:    "no attachments",
		Body:       "line one\r\nline two",
	}

	raw, err := Build(msg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got.Body != msg.Body {
		t.Errorf("Body = %q, want %q", got.Body, msg.Body)
	}
	if len(got.Attachments) != 0 {
		t.Errorf("got %d attachments, want 0", len(got.Attachments))
	}
}

func TestBuild_UniqueBoundaries(t *testing.T) {
	msg := model.OutgoingMessage{
		From:        "sender@x.com",
		Recipients:  []string{"r1@x.com"},
		Subject:     "S",
		Body:        "B",
		Attachments: []model.Attachment{{Filename: "a.bin", Data: []byte{1}}},
	}

	raw1, err := Build(msg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	raw2, err := Build(msg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// Boundary markers and Message-Id are drawn fresh per build.
	if bytes.Equal(raw1, raw2) {
		t.Error("two builds of the same message produced identical bytes")
	}
}

func TestParse_PlainNonMIMEMessage(t *testing.T) {
	raw := []byte("From: someone@x.com\r\nTo: me@x.com\r\nSubject: hello\r\n\r\nplain body\r\n")

	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got.From != "someone@x.com" {
		t.Errorf("From = %q, want %q", got.From, "someone@x.com")
	}
	if got.Subject != "hello" {
		t.Errorf("Subject = %q, want %q", got.Subject, "hello")
	}
	if got.Body != "plain body\r\n" {
		t.Errorf("Body = %q, want %q", got.Body, "plain body\r\n")
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"no header section", []byte("this is not a mail message")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.raw); !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Parse() error = %v, want ErrMalformedMessage", err)
			}
		})
	}
}
