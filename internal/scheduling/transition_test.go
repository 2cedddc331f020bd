package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/founderhub/internal/model"
)

var allStatuses = []model.ChatStatus{
	model.ChatStatusPendingSlots,
	model.ChatStatusPendingConfirmation,
	model.ChatStatusConfirmed,
	model.ChatStatusCompleted,
	model.ChatStatusCancelled,
}

func TestTransition_Table(t *testing.T) {
	allowed := map[Event]map[model.ChatStatus]model.ChatStatus{
		EventPropose:  {model.ChatStatusPendingSlots: model.ChatStatusPendingConfirmation},
		EventSelect:   {model.ChatStatusPendingConfirmation: model.ChatStatusConfirmed},
		EventComplete: {model.ChatStatusConfirmed: model.ChatStatusCompleted, model.ChatStatusCompleted: model.ChatStatusCompleted},
		EventCancel: {
			model.ChatStatusPendingSlots:        model.ChatStatusCancelled,
			model.ChatStatusPendingConfirmation: model.ChatStatusCancelled,
			model.ChatStatusConfirmed:           model.ChatStatusCancelled,
		},
	}

	for event, table := range allowed {
		for _, from := range allStatuses {
			got, err := Transition(from, event)
			want, ok := table[from]
			if ok {
				if err != nil || got != want {
					t.Errorf("Transition(%s, %s) = %s, %v; want %s", from, event, got, err, want)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Transition(%s, %s) err = %v, want ErrInvalidTransition", from, event, err)
			}
			if got != from {
				t.Errorf("Transition(%s, %s) changed status to %s on error", from, event, got)
			}
		}
	}
}

func TestTransition_TerminalStatesCannotBeReopened(t *testing.T) {
	for _, event := range []Event{EventPropose, EventSelect, EventCancel} {
		for _, from := range []model.ChatStatus{model.ChatStatusCompleted, model.ChatStatusCancelled} {
			if _, err := Transition(from, event); err == nil {
				t.Errorf("Transition(%s, %s) should fail", from, event)
			}
		}
	}
	if _, err := Transition(model.ChatStatusCancelled, EventComplete); err == nil {
		t.Error("cancelled chat must not be completed")
	}
}

func TestValidateSlotTimes(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	tests := []struct {
		name    string
		times   []time.Time
		wantErr bool
	}{
		{"three future distinct", []time.Time{now.Add(day), now.Add(2 * day), now.Add(3 * day)}, false},
		{"two slots", []time.Time{now.Add(day), now.Add(2 * day)}, true},
		{"four slots", []time.Time{now.Add(day), now.Add(2 * day), now.Add(3 * day), now.Add(4 * day)}, true},
		{"none", nil, true},
		{"past slot", []time.Time{now.Add(-time.Minute), now.Add(2 * day), now.Add(3 * day)}, true},
		{"slot equal to now", []time.Time{now, now.Add(2 * day), now.Add(3 * day)}, true},
		{"duplicate", []time.Time{now.Add(day), now.Add(day), now.Add(3 * day)}, true},
		{"same instant different zone", []time.Time{now.Add(day), now.Add(day).In(time.FixedZone("JST", 9*3600)), now.Add(3 * day)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlotTimes(tt.times, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSlots) {
				t.Errorf("err should wrap ErrInvalidSlots: %v", err)
			}
		})
	}
}

func TestMeetingLink(t *testing.T) {
	got := MeetingLink("https://meet.jit.si", "chat-42")
	if got != "https://meet.jit.si/FounderChat-chat-42" {
		t.Errorf("MeetingLink = %q", got)
	}
}
