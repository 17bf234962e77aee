package models

import "strings"

// Kind tags a request shape. Cache key derivation dispatches on it.
type Kind string

const (
	KindChat        Kind = "chat"
	KindNotice      Kind = "notice"
	KindRoadmap     Kind = "roadmap"
	KindAsk         Kind = "ask"
	KindAnalysis    Kind = "analysis"
	KindTranslation Kind = "translation"
)

// Default values for optional request fields.
const (
	DefaultJurisdiction = "India"
	DefaultNoticeType   = "Legal Notice"
	DefaultTimeline     = "Standard"
	DefaultDestLang     = "en"
)

// Request is implemented by every request shape the orchestrator serves.
// Validate also fills in defaults for optional fields.
type Request interface {
	Kind() Kind
	Validate() error
}

// ChatRequest is a free-form legal question.
type ChatRequest struct {
	Question string `json:"question"`
	// SessionID is client metadata; it does not change the answer.
	SessionID string `json:"session_id,omitempty"`
}

func (r *ChatRequest) Kind() Kind { return KindChat }

func (r *ChatRequest) Validate() error {
	return required("question", r.Question)
}

// NoticeRequest asks for a formal legal notice.
type NoticeRequest struct {
	RecipientName    string `json:"recipient_name"`
	RecipientAddress string `json:"recipient_address"`
	Subject          string `json:"subject"`
	CaseDetails      string `json:"case_details"`
	YourName         string `json:"your_name"`
	Jurisdiction     string `json:"jurisdiction,omitempty"`
	NoticeType       string `json:"notice_type,omitempty"`
}

func (r *NoticeRequest) Kind() Kind { return KindNotice }

func (r *NoticeRequest) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"recipient_name", r.RecipientName},
		{"recipient_address", r.RecipientAddress},
		{"subject", r.Subject},
		{"case_details", r.CaseDetails},
		{"your_name", r.YourName},
	} {
		if err := required(f.name, f.value); err != nil {
			return err
		}
	}
	if isBlank(r.Jurisdiction) {
		r.Jurisdiction = DefaultJurisdiction
	}
	if isBlank(r.NoticeType) {
		r.NoticeType = DefaultNoticeType
	}
	return nil
}

// RoadmapRequest asks for a step-by-step plan for a legal issue.
type RoadmapRequest struct {
	IssueType    string `json:"issue_type"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Timeline     string `json:"timeline,omitempty"`
}

func (r *RoadmapRequest) Kind() Kind { return KindRoadmap }

func (r *RoadmapRequest) Validate() error {
	if err := required("issue_type", r.IssueType); err != nil {
		return err
	}
	if isBlank(r.Jurisdiction) {
		r.Jurisdiction = DefaultJurisdiction
	}
	if isBlank(r.Timeline) {
		r.Timeline = DefaultTimeline
	}
	return nil
}

// AskRequest is a question answered from the reference corpus.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

func (r *AskRequest) Kind() Kind { return KindAsk }

// Validate rejects empty questions and negative top_k. A zero TopK is left for the
// orchestrator to replace with its configured default.
func (r *AskRequest) Validate() error {
	if err := required("question", r.Question); err != nil {
		return err
	}
	if r.TopK < 0 {
		return &ValidationError{Field: "top_k", Message: "must not be negative"}
	}
	return nil
}

// AnalysisRequest asks for QA and summarization over a document's plain text.
type AnalysisRequest struct {
	DocumentText string `json:"document_text"`
	Query        string `json:"query,omitempty"`
	Filename     string `json:"filename,omitempty"`
}

func (r *AnalysisRequest) Kind() Kind { return KindAnalysis }

func (r *AnalysisRequest) Validate() error {
	if isBlank(r.DocumentText) {
		return &ValidationError{Field: "document_text", Message: "is empty or could not be extracted"}
	}
	r.Query = strings.TrimSpace(r.Query)
	return nil
}

// TranslationRequest asks for text to be translated into DestLang.
type TranslationRequest struct {
	Text     string `json:"text"`
	DestLang string `json:"dest_lang,omitempty"`
}

func (r *TranslationRequest) Kind() Kind { return KindTranslation }

func (r *TranslationRequest) Validate() error {
	if err := required("text", r.Text); err != nil {
		return err
	}
	if isBlank(r.DestLang) {
		r.DestLang = DefaultDestLang
	}
	return nil
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
