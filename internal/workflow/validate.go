// Package workflow はコーヒーチャットの日程調整をクライアント側で進めるコーディネーターを提供する。
// 状態は純粋なリデューサーで更新し、表示用の絞り込みは状態を変更しない。
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// RequiredSlots は1回の提案で送る候補日時の件数。
	RequiredSlots = 3
	// MinCheckinLength はチェックイン本文の最小文字数。
	MinCheckinLength = 20
)

// ErrValidation はリクエスト送信前の入力検証に失敗したことを表す。
var ErrValidation = errors.New("validation error")

// ErrInFlight は同じリソースに対する操作が実行中であることを表す。
var ErrInFlight = errors.New("operation already in flight")

// ValidateSlots は候補日時がちょうど3件で、すべて未来かつ重複しないことを検証する。
func ValidateSlots(times []time.Time, now time.Time) error {
	if len(times) != RequiredSlots {
		return fmt.Errorf("%w: 候補日時は%d件必要です（%d件）", ErrValidation, RequiredSlots, len(times))
	}
	seen := make(map[int64]struct{}, len(times))
	for _, t := range times {
		if t.IsZero() {
			return fmt.Errorf("%w: 候補日時が未入力です", ErrValidation)
		}
		if !t.After(now) {
			return fmt.Errorf("%w: 候補日時は未来の日時を指定してください: %s", ErrValidation, t.Format(time.RFC3339))
		}
		key := t.UnixNano()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: 候補日時が重複しています: %s", ErrValidation, t.Format(time.RFC3339))
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ValidateCheckin は前後の空白を除いた本文が最小文字数以上であることを検証する。
func ValidateCheckin(text string) error {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinCheckinLength {
		return fmt.Errorf("%w: チェックインは%d文字以上で入力してください", ErrValidation, MinCheckinLength)
	}
	return nil
}
