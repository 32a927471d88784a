package signing

import (
	"errors"
	"testing"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		target  Status
		wantErr error
	}{
		{"dispatch draft", StatusDraft, StatusSent, nil},
		{"dispatch twice", StatusSent, StatusSent, ErrAlreadySent},
		{"dispatch signed", StatusSigned, StatusSent, ErrAlreadyInTerminalState},
		{"sign sent", StatusSent, StatusSigned, nil},
		{"sign draft", StatusDraft, StatusSigned, ErrNotSent},
		{"sign signed", StatusSigned, StatusSigned, ErrAlreadyInTerminalState},
		{"sign returned", StatusReturned, StatusSigned, ErrAlreadyInTerminalState},
		{"return sent", StatusSent, StatusReturned, nil},
		{"return draft", StatusDraft, StatusReturned, ErrNotSent},
		{"return returned", StatusReturned, StatusReturned, ErrAlreadyInTerminalState},
		{"invalid current", Status("SENT"), StatusSigned, ErrInvalidInput},
		{"invalid target", StatusSent, Status("done"), ErrInvalidInput},
		{"draft is not a target", StatusSent, StatusDraft, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Transition(tt.current, tt.target)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Transition(%q, %q) = %v, want %v", tt.current, tt.target, err, tt.wantErr)
			}
		})
	}
}

func TestReopen(t *testing.T) {
	for _, s := range []Status{StatusSent, StatusSigned, StatusReturned} {
		if err := Reopen(s); err != nil {
			t.Errorf("Reopen(%q) = %v, want nil", s, err)
		}
	}
	if err := Reopen(StatusDraft); !errors.Is(err, ErrNotSent) {
		t.Errorf("Reopen(draft) = %v, want ErrNotSent", err)
	}
}

func TestTerminal(t *testing.T) {
	if StatusDraft.Terminal() || StatusSent.Terminal() {
		t.Error("draft/sent must not be terminal")
	}
	if !StatusSigned.Terminal() || !StatusReturned.Terminal() {
		t.Error("signed/returned must be terminal")
	}
}
