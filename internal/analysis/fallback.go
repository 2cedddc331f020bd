package analysis

import (
	"strings"

	"github.com/hitoshi/founderhub/internal/model"
)

var (
	struggleWords = []string{"stuck", "struggling", "need help", "challenge", "problem", "issue"}
	progressWords = []string{"learned", "completed", "built", "launched", "achieved", "figured out"}
)

type keywordRule struct {
	keywords []string
	skill    model.Skill
}

var needRules = []keywordRule{
	{[]string{"ml", "machine learning", "model"}, model.Skill{Label: "Machine learning deployment and scaling", Category: "technical"}},
	{[]string{"fundrais", "investor"}, model.Skill{Label: "Fundraising and investor relations", Category: "fundraising"}},
	{[]string{"market", "growth"}, model.Skill{Label: "Growth and marketing strategy", Category: "marketing"}},
}

var learningRules = []keywordRule{
	{[]string{"product", "feature"}, model.Skill{Label: "Product development and feature launch", Category: "product"}},
	{[]string{"user", "customer"}, model.Skill{Label: "User research and customer feedback", Category: "UX"}},
}

var (
	defaultNeed     = model.Skill{Label: "General startup guidance", Category: "strategy"}
	defaultLearning = model.Skill{Label: "Weekly progress and insights", Category: "product"}
)

// KeywordExtract はキーワードの部分一致でニーズとラーニングを抽出する。
// 困りごとを示す語があればニーズ、進捗を示す語があればラーニングを候補にし、
// どちらも該当しない場合は既定のラベルを1件ずつ返す。
func KeywordExtract(text string) model.Extraction {
	lower := strings.ToLower(text)

	var needs, learnings []model.Skill
	if containsAny(lower, struggleWords) {
		needs = applyRules(lower, needRules)
	}
	if containsAny(lower, progressWords) {
		learnings = applyRules(lower, learningRules)
	}

	if len(needs) == 0 {
		needs = []model.Skill{defaultNeed}
	}
	if len(learnings) == 0 {
		learnings = []model.Skill{defaultLearning}
	}
	return model.Extraction{Needs: needs, Learnings: learnings}
}

func applyRules(text string, rules []keywordRule) []model.Skill {
	var out []model.Skill
	for _, r := range rules {
		if containsAny(text, r.keywords) {
			out = append(out, r.skill)
		}
	}
	return out
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
