package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/founderhub/internal/model"
)

// ErrInvalidSlots は候補日時の組が要件を満たさないことを表す。
var ErrInvalidSlots = errors.New("invalid slot proposal")

// ValidateSlotTimes は候補日時が要件を満たすか検証する。
// 候補はちょうど3件で、すべてnowより未来かつ互いに異なる必要がある。
func ValidateSlotTimes(times []time.Time, now time.Time) error {
	if len(times) != model.RequiredSlotCount {
		return fmt.Errorf("%w: exactly %d slots are required, got %d", ErrInvalidSlots, model.RequiredSlotCount, len(times))
	}
	for i, t := range times {
		if !t.After(now) {
			return fmt.Errorf("%w: slot %d (%s) is not in the future", ErrInvalidSlots, i+1, t.Format(time.RFC3339))
		}
		for j := 0; j < i; j++ {
			if times[j].Equal(t) {
				return fmt.Errorf("%w: slots %d and %d are the same time", ErrInvalidSlots, j+1, i+1)
			}
		}
	}
	return nil
}

// MeetingLink はチャットのビデオ会議リンクを生成する。
func MeetingLink(baseURL, chatID string) string {
	return fmt.Sprintf("%s/FounderChat-%s", baseURL, chatID)
}
