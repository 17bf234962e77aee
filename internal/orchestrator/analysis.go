package orchestrator

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kanoon/internal/backend"
	"github.com/hyperjump/kanoon/internal/models"
	"github.com/hyperjump/kanoon/pkg/utils"
)

// Fixed analysis messages.
const (
	SummaryUnavailable  = "Summarization model unavailable."
	SummaryFailed       = "Summary could not be generated."
	NoAnalysisAvailable = "No analysis models available."
)

// AnalyzeDocument answers the optional query against the document and summarizes it.
// QA and summarization run concurrently and independently: either may be missing
// without failing the request.
func (o *Orchestrator) AnalyzeDocument(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResponse, error) {
	return serve(o, &req, func() (models.AnalysisResponse, bool, error) {
		start := o.now()
		text := utils.TruncateRunes(req.DocumentText, o.cfg.MaxAnalysisChars)

		var (
			answer    *backend.Answer
			qaRes     = backend.Result{Status: backend.StatusOK}
			summary   *backend.Summary
			summarRes backend.Result
		)
		var g errgroup.Group
		if req.Query != "" {
			g.Go(func() error {
				answer, qaRes = o.backends.Answer(ctx, req.Query, text)
				return nil
			})
		}
		g.Go(func() error {
			summary, summarRes = o.backends.Summarize(ctx, text)
			return nil
		})
		_ = g.Wait()

		resp := models.AnalysisResponse{DocumentLength: utf8.RuneCountInString(req.DocumentText)}
		if answer != nil && qaRes.OK() {
			a, score := answer.Text, answer.Score
			resp.Answer = &a
			resp.Confidence = &score
		}

		switch summarRes.Status {
		case backend.StatusOK:
			if summary != nil && summary.Text != "" {
				s := summary.Text
				resp.Summary = &s
			}
		case backend.StatusUnavailable:
			s := SummaryUnavailable
			resp.Summary = &s
		default:
			s := SummaryFailed
			resp.Summary = &s
		}

		if !o.backends.Loaded(backend.RoleQA) && !o.backends.Loaded(backend.RoleSummarizer) {
			m := NoAnalysisAvailable
			resp.Message = &m
		}

		o.logger.Info("Document analysis finished",
			zap.String("filename", req.Filename),
			zap.Duration("elapsed", o.now().Sub(start)),
			zap.Int("document_length", resp.DocumentLength),
			zap.Bool("answered", resp.Answer != nil))
		return resp, qaRes.Cacheable() && summarRes.Cacheable(), nil
	})
}
