// Package security はアプリケーションのセキュリティ機能を提供する。
//
// EventSanitizer は外部パイプラインが書き込んだイベントのテキストから
// HTMLを除去し、ブラウザに返しても安全なプレーンテキストにする。
// bluemondayのStrictPolicyで全タグを落とした後、エンティティを戻す。
// エンティティを戻すと新たなタグが現れうるため、出力が変わらなくなるまで繰り返す。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/portfolio-intel/internal/model"
)

// EventSanitizer はイベント本文のサニタイズ機能のインターフェースを定義する。
type EventSanitizer interface {
	// SanitizeText はHTMLタグを除去したプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string

	// SanitizeEvent はイベントのテキスト項目をその場でサニタイズする。
	SanitizeEvent(e *model.Event)
}

// maxSanitizeRounds は多重エンコードされた入力に対する繰り返しの上限。
const maxSanitizeRounds = 8

// eventSanitizer はEventSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type eventSanitizer struct {
	policy *bluemonday.Policy
}

// NewEventSanitizer はEventSanitizerの新しいインスタンスを生成する。
func NewEventSanitizer() *eventSanitizer {
	return &eventSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はHTMLタグを除去したプレーンテキストを返す。
func (s *eventSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	cur := raw
	for i := 0; i < maxSanitizeRounds; i++ {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(cur)))
		if next == cur {
			return next
		}
		cur = next
	}
	// 収束しない場合はエスケープしたまま返す
	return s.policy.Sanitize(cur)
}

// SanitizeEvent はイベントのテキスト項目をサニタイズする。
// urlはhttp/httpsスキーム以外であれば空にする。
func (s *eventSanitizer) SanitizeEvent(e *model.Event) {
	if e == nil {
		return
	}

	e.Headline = s.SanitizeText(e.Headline)
	e.Summary = s.SanitizeText(e.Summary)
	e.ContentSummary = s.SanitizeText(e.ContentSummary)
	e.ItemsReported = s.SanitizeText(e.ItemsReported)
	e.PrimaryItem = s.SanitizeText(e.PrimaryItem)
	e.URL = SafeLink(e.URL)

	if a := e.Analysis; a != nil {
		a.Summary = s.SanitizeText(a.Summary)
		a.RelatedContext = s.SanitizeText(a.RelatedContext)
		a.ImpactAssessment.MarketImplications = s.SanitizeText(a.ImpactAssessment.MarketImplications)
		a.ImpactAssessment.FinancialImpact = s.SanitizeText(a.ImpactAssessment.FinancialImpact)
		a.ImpactAssessment.StrategicSignificance = s.SanitizeText(a.ImpactAssessment.StrategicSignificance)
		for i, v := range a.KeyInsights {
			a.KeyInsights[i] = s.SanitizeText(v)
		}
		for i, v := range a.InvestigationAreas {
			a.InvestigationAreas[i] = s.SanitizeText(v)
		}
	}
}

// SafeLink はhttp/httpsの絶対URLのみを返し、それ以外は空文字列を返す。
func SafeLink(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || !isAllowedScheme(u.Scheme) {
		return ""
	}
	return u.String()
}
