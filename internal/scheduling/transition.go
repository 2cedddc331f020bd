// Package scheduling はコーヒーチャットの日程調整ワークフローを提供する。
//
// チャットは pending_slots → pending_confirmation → confirmed → completed の順に進み、
// 終端状態以外からは cancelled に遷移できる。状態の変更はすべて Transition を経由する。
package scheduling

import (
	"errors"
	"fmt"

	"github.com/hitoshi/founderhub/internal/model"
)

// Event はチャットの状態を変化させる操作。
type Event string

const (
	EventPropose  Event = "propose"
	EventSelect   Event = "select"
	EventComplete Event = "complete"
	EventCancel   Event = "cancel"
)

// ErrInvalidTransition は現在の状態で許可されない操作を表す。
var ErrInvalidTransition = errors.New("invalid coffee chat transition")

var transitions = map[Event]map[model.ChatStatus]model.ChatStatus{
	EventPropose: {
		model.ChatStatusPendingSlots: model.ChatStatusPendingConfirmation,
	},
	EventSelect: {
		model.ChatStatusPendingConfirmation: model.ChatStatusConfirmed,
	},
	EventComplete: {
		model.ChatStatusConfirmed: model.ChatStatusCompleted,
		model.ChatStatusCompleted: model.ChatStatusCompleted,
	},
	EventCancel: {
		model.ChatStatusPendingSlots:        model.ChatStatusCancelled,
		model.ChatStatusPendingConfirmation: model.ChatStatusCancelled,
		model.ChatStatusConfirmed:           model.ChatStatusCancelled,
	},
}

// Transition はfromの状態にeventを適用した後の状態を返す。
// completedへのcompleteは同じ状態を返す（冪等）。
func Transition(from model.ChatStatus, event Event) (model.ChatStatus, error) {
	to, ok := transitions[event][from]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
	}
	return to, nil
}
