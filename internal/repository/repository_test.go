package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/founderhub/internal/model"
)

// 各PostgreSQL実装がインターフェースを満たすことを検証
func TestPostgresRepos_ImplementInterfaces(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
	var _ CheckinRepository = (*PostgresCheckinRepo)(nil)
	var _ MatchRepository = (*PostgresMatchRepo)(nil)
	var _ CoffeeChatRepository = (*PostgresCoffeeChatRepo)(nil)
	var _ StatsRepository = (*PostgresStatsRepo)(nil)
}

func TestMergeSkillLists_DeduplicatesByLabel(t *testing.T) {
	existing := []model.Skill{
		{Label: "Fundraising", Category: "fundraising"},
		{Label: "User research", Category: "UX"},
	}
	added := []model.Skill{
		{Label: "Fundraising", Category: "finance"},
		{Label: "Pricing", Category: "sales"},
		{Label: "Pricing", Category: "strategy"},
	}

	got := MergeSkillLists(existing, added)

	want := []model.Skill{
		{Label: "Fundraising", Category: "fundraising"},
		{Label: "User research", Category: "UX"},
		{Label: "Pricing", Category: "sales"},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMergeSkillLists_DoesNotMutateExisting(t *testing.T) {
	existing := make([]model.Skill, 1, 4)
	existing[0] = model.Skill{Label: "Sales", Category: "sales"}

	_ = MergeSkillLists(existing, []model.Skill{{Label: "Hiring", Category: "hiring"}})

	if got := existing[:2][1]; got.Label != "" {
		t.Errorf("existing backing array was modified: %+v", got)
	}
}

type recordingExecer struct {
	query string
	args  []any
}

func (e *recordingExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	e.query = query
	e.args = args
	return nil, nil
}

func TestIncrementStat_UsesWhitelistedColumn(t *testing.T) {
	ex := &recordingExecer{}
	if err := incrementStat(context.Background(), ex, "user-1", model.StatTotalChats, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(ex.query, "total_chats = total_chats + $2") {
		t.Errorf("unexpected query: %s", ex.query)
	}
	if len(ex.args) != 2 || ex.args[0] != "user-1" || ex.args[1] != 1 {
		t.Errorf("unexpected args: %v", ex.args)
	}
}

func TestIncrementStat_RejectsUnknownColumn(t *testing.T) {
	ex := &recordingExecer{}
	err := incrementStat(context.Background(), ex, "user-1", model.UserStat("xp; DROP TABLE users"), 1)
	if err == nil {
		t.Fatal("expected error for unknown stat")
	}
	if ex.query != "" {
		t.Errorf("query must not be executed, got %q", ex.query)
	}
}

type fakeResult struct{ n int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.n, nil }

func TestRequireOneRow(t *testing.T) {
	if err := requireOneRow(fakeResult{n: 1}); err != nil {
		t.Errorf("1 row: unexpected error %v", err)
	}
	if err := requireOneRow(fakeResult{n: 0}); !errors.Is(err, ErrConflict) {
		t.Errorf("0 rows: got %v, want ErrConflict", err)
	}
}

func TestNewRepos_Initialize(t *testing.T) {
	if NewPostgresUserRepo(nil) == nil ||
		NewPostgresSessionRepo(nil) == nil ||
		NewPostgresCheckinRepo(nil) == nil ||
		NewPostgresMatchRepo(nil) == nil ||
		NewPostgresCoffeeChatRepo(nil) == nil ||
		NewPostgresStatsRepo(nil) == nil {
		t.Fatal("expected non-nil repos")
	}
}
