package email

import (
	"strings"
	"testing"
)

func TestEnabledRequiresHostFromAndTo(t *testing.T) {
	if (&Sender{}).Enabled() {
		t.Error("zero-value Sender should not be Enabled")
	}
	s := NewSender(Config{Host: "smtp.example.com", From: "a@example.com", To: "b@example.com"})
	if !s.Enabled() {
		t.Error("Sender with Host/From/To set should be Enabled")
	}
}

func TestSendFailsWhenNotConfigured(t *testing.T) {
	s := NewSender(Config{})
	if err := s.Send("subject", "body"); err == nil {
		t.Error("expected Send to fail on an unconfigured Sender")
	}
}

func TestBuildMessageIncludesHeaders(t *testing.T) {
	msg := string(buildMessage("from@example.com", "to@example.com", "Hi", "body text"))
	for _, want := range []string{"From: from@example.com", "To: to@example.com", "Subject: Hi", "body text"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestIsEmailRequestRecognizesPhrasing(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"please send an email to mom", true},
		{"can you send email now", true},
		{"email that report to the team", true},
		{"what's the weather today", false},
		{"", false},
	}
	for _, c := range cases {
		if got := IsEmailRequest(c.text); got != c.want {
			t.Errorf("IsEmailRequest(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}
