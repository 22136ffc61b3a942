package mail

import (
	"net/smtp"
	"testing"
)

func TestLoginAuthStart(t *testing.T) {
	a := &loginAuth{username: "bob", password: "secret"}

	proto, resp, err := a.Start(&smtp.ServerInfo{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if proto != "LOGIN" {
		t.Fatalf("Start() proto = %q, want %q", proto, "LOGIN")
	}
	if resp != nil {
		t.Fatalf("Start() initial response = %v, want nil", resp)
	}
}

func TestLoginAuthNextRespondsToUsernameAndPasswordPrompts(t *testing.T) {
	a := &loginAuth{username: "bob", password: "secret"}

	got, err := a.Next([]byte("Username:"), true)
	if err != nil {
		t.Fatalf("Next(Username): %v", err)
	}
	if string(got) != "bob" {
		t.Fatalf("Next(Username) = %q, want %q", got, "bob")
	}

	got, err = a.Next([]byte("Password:"), true)
	if err != nil {
		t.Fatalf("Next(Password): %v", err)
	}
	if string(got) != "secret" {
		t.Fatalf("Next(Password) = %q, want %q", got, "secret")
	}
}

func TestLoginAuthNextStopsWhenServerHasNoMorePrompts(t *testing.T) {
	a := &loginAuth{username: "bob", password: "secret"}
	got, err := a.Next(nil, false)
	if err != nil {
		t.Fatalf("Next(more=false): %v", err)
	}
	if got != nil {
		t.Fatalf("Next(more=false) = %v, want nil", got)
	}
}

func TestLoginAuthNextRejectsUnexpectedPrompt(t *testing.T) {
	a := &loginAuth{username: "bob", password: "secret"}
	if _, err := a.Next([]byte("Something else:"), true); err == nil {
		t.Fatalf("expected an error for an unrecognized LOGIN prompt")
	}
}
