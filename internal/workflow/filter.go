package workflow

import (
	"time"

	"github.com/hitoshi/founderhub/internal/client"
	"github.com/hitoshi/founderhub/internal/model"
)

// confirmedVisibleFor は確定済みチャットを予定時刻の後も表示し続ける時間。
const confirmedVisibleFor = time.Hour

// ActiveChats は表示対象のチャットを返す。
// completedは常に除外し、confirmedは予定時刻から1時間以上経過したものを除外する。
// 入力のスライスと各チャットは変更しない。
func ActiveChats(chats []client.CoffeeChat, now time.Time) []client.CoffeeChat {
	out := make([]client.CoffeeChat, 0, len(chats))
	for _, c := range chats {
		if isActive(c, now) {
			out = append(out, c)
		}
	}
	return out
}

func isActive(c client.CoffeeChat, now time.Time) bool {
	switch c.Status {
	case model.ChatStatusCompleted:
		return false
	case model.ChatStatusConfirmed:
		if c.ScheduledTime == nil {
			return true
		}
		return now.Sub(*c.ScheduledTime) < confirmedVisibleFor
	default:
		return true
	}
}
