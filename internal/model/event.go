package model

// EventType はイベント種別を表す。
type EventType string

const (
	EventTypeNews      EventType = "NEWS"
	EventTypeSECFiling EventType = "SEC_FILING"
)

// EventStatus はAI解析の進行状態を表す。
type EventStatus string

const (
	EventStatusPendingAnalysis EventStatus = "PENDING_ANALYSIS"
	EventStatusAnalyzed        EventStatus = "ANALYZED"
	EventStatusFailed          EventStatus = "FAILED"
)

// ValidEventStatus は文字列が既知のイベントステータスかどうかを返す。
func ValidEventStatus(s string) bool {
	switch EventStatus(s) {
	case EventStatusPendingAnalysis, EventStatusAnalyzed, EventStatusFailed:
		return true
	default:
		return false
	}
}

// ConfidenceLevel はAI解析の信頼度を表す。
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// Event は検出パイプラインが生成したニュース記事またはSECファイリングを表す。
// このシステムからは読み取り専用。
type Event struct {
	EventID            string              `json:"event_id" dynamodbav:"event_id"`
	Ticker             string              `json:"ticker" dynamodbav:"ticker"`
	EventType          EventType           `json:"event_type" dynamodbav:"event_type"`
	Timestamp          string              `json:"timestamp" dynamodbav:"timestamp"` // ISO 8601
	Headline           string              `json:"headline" dynamodbav:"headline"`
	URL                string              `json:"url" dynamodbav:"url"`
	Status             EventStatus         `json:"status" dynamodbav:"status"`
	SentimentScore     *float64            `json:"sentiment_score,omitempty" dynamodbav:"sentiment_score,omitempty"`
	Summary            string              `json:"summary,omitempty" dynamodbav:"summary,omitempty"`
	ItemsReported      string              `json:"items_reported,omitempty" dynamodbav:"items_reported,omitempty"`
	PrimaryItem        string              `json:"primary_item,omitempty" dynamodbav:"primary_item,omitempty"`
	ContentSummary     string              `json:"content_summary,omitempty" dynamodbav:"content_summary,omitempty"`
	Analysis           *EventAnalysis      `json:"analysis,omitempty" dynamodbav:"analysis,omitempty"`
	DetectedAt         string              `json:"detected_at" dynamodbav:"detected_at"`
	AnalyzedAt         string              `json:"analyzed_at,omitempty" dynamodbav:"analyzed_at,omitempty"`
	ProcessingMetadata *ProcessingMetadata `json:"processing_metadata,omitempty" dynamodbav:"processing_metadata,omitempty"`
}

// EventAnalysis はイベントに付与されたAI解析結果を表す。
type EventAnalysis struct {
	Summary            string           `json:"summary" dynamodbav:"summary"`
	KeyInsights        []string         `json:"key_insights" dynamodbav:"key_insights"`
	ImpactAssessment   ImpactAssessment `json:"impact_assessment" dynamodbav:"impact_assessment"`
	RelatedContext     string           `json:"related_context" dynamodbav:"related_context"`
	InvestigationAreas []string         `json:"investigation_areas" dynamodbav:"investigation_areas"`
	ConfidenceLevel    ConfidenceLevel  `json:"confidence_level" dynamodbav:"confidence_level"`
}

// ImpactAssessment は解析結果の影響評価を表す。
type ImpactAssessment struct {
	MarketImplications    string `json:"market_implications" dynamodbav:"market_implications"`
	FinancialImpact       string `json:"financial_impact" dynamodbav:"financial_impact"`
	StrategicSignificance string `json:"strategic_significance" dynamodbav:"strategic_significance"`
}

// ProcessingMetadata は解析パイプラインの処理メタデータを表す。
type ProcessingMetadata struct {
	SimilarEventsCount int    `json:"similar_events_count" dynamodbav:"similar_events_count"`
	ModelVersion       string `json:"model_version" dynamodbav:"model_version"`
}

// UserEvent はユーザーがイベントを閲覧する権限を持つことを示すジャンクションレコード。
// イベント閲覧の唯一の認可境界となる。
type UserEvent struct {
	UserID  string `dynamodbav:"user_id"`
	EventID string `dynamodbav:"event_id"`
	Ticker  string `dynamodbav:"ticker,omitempty"`
}

// EventFilter はイベント一覧の絞り込み条件。
type EventFilter struct {
	Ticker string
	Status EventStatus
}
