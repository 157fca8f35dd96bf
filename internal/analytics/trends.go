package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/veebhq/veeb/internal/model"
)

// maxTrendKeywords bounds the returned keyword list.
const maxTrendKeywords = 10

// A TrendKeyword is an ephemeral, fully recomputed trending token.
type TrendKeyword struct {
	Word  string  `json:"word"`
	Score float64 `json:"score"`
	Count int     `json:"count"`
}

// Korean particle suffixes, longest first so 에서는 wins over 에서 over 에.
var kwSuffixes = []string{
	"에서는", "에서도", "에서", "에게", "한테", "으로", "이랑", "에는",
	"에도", "까지", "부터", "처럼", "같이", "보다", "마다",
	"에", "을", "를", "이", "가", "은", "는", "도", "로", "의", "와", "과", "랑",
}

// Stop words: particles, adverbs, pronouns and generic predicates that carry
// no topical signal.
var kwStopwords = func() map[string]bool {
	words := []string{
		"이", "가", "은", "는", "을", "를", "에", "의", "도", "로", "와", "과",
		"에서", "으로", "에게", "한테", "부터", "까지", "만", "처럼", "같이",
		"보다", "마다", "이랑", "랑", "하고", "나", "너", "저", "우리",
		"이거", "저거", "그거", "여기", "거기", "저기", "그냥", "진짜", "정말",
		"너무", "아주", "매우", "좀", "잘", "안", "못", "다", "더", "또",
		"왜", "어떻게", "아", "오", "헐", "ㅋㅋ", "ㅎㅎ", "ㅠㅠ",
		"그리고", "그래서", "하지만", "그런데", "근데",
		"있다", "없다", "하다", "되다", "같다", "있는", "없는", "하는",
		"있어요", "없어요", "해요", "돼요", "같아요", "있어", "없어",
		"했어", "됐어", "같아", "합니다", "됩니다", "입니다", "해주세요",
		"것", "거", "수", "등", "중", "때", "곳", "분", "명", "개",
		"사람", "오늘", "내일", "어제", "지금", "이번", "요즘",
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}()

// TrendKeywords extracts the top trending tokens from issues created within
// the trailing window, each weighted by the freshness-boosted score of the
// posts it appears in. Ties keep first-encountered order.
func TrendKeywords(issues []*model.Issue, now time.Time) []TrendKeyword {
	type entry struct {
		score float64
		count int
		order int
	}
	scores := map[string]*entry{}
	order := 0

	for _, issue := range issues {
		if issue.CreatedAt == nil || now.Sub(*issue.CreatedAt) >= Window {
			continue
		}

		postScore := PostScore(issue, now)

		seen := map[string]bool{}
		for _, token := range Tokenize(issue.Title) {
			if seen[token] {
				continue
			}
			seen[token] = true

			e := scores[token]
			if e == nil {
				e = &entry{order: order}
				order++
				scores[token] = e
			}

			lengthBonus := 1.0
			if len([]rune(token)) >= 3 {
				lengthBonus = 1.5
			}
			e.score += postScore * lengthBonus
			e.count++
		}
	}

	keywords := make([]TrendKeyword, 0, len(scores))
	orders := make(map[string]int, len(scores))
	for word, e := range scores {
		keywords = append(keywords, TrendKeyword{Word: word, Score: e.score, Count: e.count})
		orders[word] = e.order
	}
	sort.SliceStable(keywords, func(i, j int) bool {
		if keywords[i].Score != keywords[j].Score {
			return keywords[i].Score > keywords[j].Score
		}
		return orders[keywords[i].Word] < orders[keywords[j].Word]
	})

	if len(keywords) > maxTrendKeywords {
		keywords = keywords[:maxTrendKeywords]
	}
	return keywords
}

// Tokenize splits a title into candidate keywords: non-word runes become
// separators, particle suffixes are stripped (longest first, only while a
// meaningful stem remains), then short tokens and stop words are dropped.
func Tokenize(title string) []string {
	fields := strings.FieldsFunc(title, func(r rune) bool {
		return !isWordRune(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, w := range fields {
		w = stripSuffix(w)
		if len([]rune(w)) < 2 || kwStopwords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

func stripSuffix(w string) string {
	runes := []rune(w)
	for _, sfx := range kwSuffixes {
		s := []rune(sfx)
		if len(runes) > len(s)+1 && strings.HasSuffix(w, sfx) {
			return string(runes[:len(runes)-len(s)])
		}
	}
	return w
}

// isWordRune keeps latin word characters, digits and Hangul (jamo and
// composed syllables).
func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9', r == '_':
		return true
	case r >= 0x3131 && r <= 0x3163: // Hangul compatibility jamo
		return true
	case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables
		return true
	}
	return false
}
