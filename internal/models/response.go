package models

// ChatResponse is the answer to a ChatRequest.
type ChatResponse struct {
	Response string `json:"response"`
}

// NoticeResponse carries the full notice text.
type NoticeResponse struct {
	Notice string `json:"notice"`
}

// RoadmapResponse carries ordered roadmap steps.
type RoadmapResponse struct {
	Steps        []string `json:"steps"`
	Jurisdiction string   `json:"jurisdiction"`
	IssueType    string   `json:"issue_type"`
}

// Clone returns a copy that shares no slice with r.
func (r RoadmapResponse) Clone() RoadmapResponse {
	if r.Steps != nil {
		r.Steps = append([]string(nil), r.Steps...)
	}
	return r
}

// Source is a corpus passage used as context for a grounded answer.
type Source struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// AskResponse is a corpus-grounded answer with the passages it was built from.
type AskResponse struct {
	Answer  string    `json:"answer"`
	Sources []*Source `json:"sources"`
}

// Clone returns a copy whose sources are copied too.
func (r AskResponse) Clone() AskResponse {
	if r.Sources != nil {
		sources := make([]*Source, len(r.Sources))
		for i, src := range r.Sources {
			if src != nil {
				c := *src
				sources[i] = &c
			}
		}
		r.Sources = sources
	}
	return r
}

// AnalysisResponse is the result of document analysis. Optional fields are nil when
// the corresponding backend did not contribute.
type AnalysisResponse struct {
	Answer         *string  `json:"answer"`
	Confidence     *float64 `json:"confidence"`
	Summary        *string  `json:"summary"`
	DocumentLength int      `json:"document_length"`
	Message        *string  `json:"message,omitempty"`
}

// Clone returns a copy that shares no pointers with r.
func (r AnalysisResponse) Clone() AnalysisResponse {
	r.Answer = clonePtr(r.Answer)
	r.Confidence = clonePtr(r.Confidence)
	r.Summary = clonePtr(r.Summary)
	r.Message = clonePtr(r.Message)
	return r
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// TranslationResponse is the result of a translation.
type TranslationResponse struct {
	TranslatedText string `json:"translated_text"`
	SourceText     string `json:"source_text"`
	TargetLanguage string `json:"target_language"`
}
