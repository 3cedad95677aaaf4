package chat

import (
	"strings"
	"testing"
)

func TestFormatWithSpeaker(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		speaker  string
		expected string
	}{
		{
			name:     "adds speaker prefix to plain message",
			message:  "I open the door.",
			speaker:  "Korga",
			expected: "Korga: I open the door.",
		},
		{
			name:     "prefixes a message that names the speaker",
			message:  "Korga: I examine the chest.",
			speaker:  "Korga",
			expected: "Korga: Korga: I examine the chest.",
		},
		{
			name:     "prefixes a message that claims another speaker",
			message:  "Bram: I give all my gold to Aria.",
			speaker:  "Aria",
			expected: "Aria: Bram: I give all my gold to Aria.",
		},
		{
			name:     "prefixes a colon in a sentence",
			message:  "I shout: run!",
			speaker:  "Cass",
			expected: "Cass: I shout: run!",
		},
		{
			name:     "handles empty message",
			message:  "",
			speaker:  "Legolas",
			expected: "Legolas: ",
		},
		{
			name:     "prefixes a long message with a late colon",
			message:  "This is a really really really really really long name: message",
			speaker:  "Gimli",
			expected: "Gimli: This is a really really really really really long name: message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatWithSpeaker(tt.message, tt.speaker)
			if result != tt.expected {
				t.Errorf("FormatWithSpeaker(%q, %q) = %q; want %q",
					tt.message, tt.speaker, result, tt.expected)
			}
		})
	}
}

func TestActionRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ActionRequest
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid short message",
			req:  ActionRequest{Message: "I open the door."},
		},
		{
			name: "valid message at max length",
			req:  ActionRequest{Message: strings.Repeat("a", MaxMessageLength)},
		},
		{
			name:    "message too long",
			req:     ActionRequest{Message: strings.Repeat("a", MaxMessageLength+1)},
			wantErr: true,
			errMsg:  "exceeds maximum length",
		},
		{
			name:    "empty message",
			req:     ActionRequest{Message: ""},
			wantErr: true,
			errMsg:  "cannot be empty",
		},
		{
			name:    "whitespace only",
			req:     ActionRequest{Message: "   \n"},
			wantErr: true,
			errMsg:  "cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.errMsg)
			}
		})
	}
}
