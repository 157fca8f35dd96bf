package analytics

import (
	"strings"

	"github.com/veebhq/veeb/internal/geoutil"
)

// Keyword banner templates; #{keyword} is substituted at render time.
var statusTemplates = []string{
	"실시간 #{keyword} 바이브 포착!",
	"비브가 #{keyword} 이슈를 분석 중입니다",
	"지금 뜨는 #{keyword} 소식만 모았어요",
	"#{keyword} 상황 실시간 관측 중",
}

// Category-specific pools take precedence while a category filter is active.
var categoryStatusTemplates = map[string][]string{
	"사건사고": {"#{keyword} 긴급 상황을 확인 중입니다", "#{keyword} 현장 소식을 추적 중"},
	"맛집":   {"#{keyword} 맛집 소식을 큐레이션 중", "#{keyword} 근처 핫플을 탐색 중"},
	"교통":   {"#{keyword} 교통 상황을 모니터링 중", "#{keyword} 도로 소식 수집 중"},
	"행사":   {"#{keyword} 행사 정보를 정리 중입니다", "#{keyword} 이벤트 소식을 수집 중"},
}

// StatusMessage returns the banner shown while a trend keyword is active.
// The template is picked deterministically from the keyword, so the same
// keyword always renders the same banner.
func StatusMessage(keyword, category string) string {
	pool := statusTemplates
	if category != "" {
		if p, ok := categoryStatusTemplates[category]; ok {
			pool = p
		}
	}

	h := geoutil.Hash(keyword)
	if h < 0 {
		h = -h
	}
	return strings.ReplaceAll(pool[int(h)%len(pool)], "#{keyword}", keyword)
}
