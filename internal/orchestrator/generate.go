package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/internal/models"
	"github.com/hyperjump/kanoon/pkg/utils"
)

// Chat answers a free-form legal question.
func (o *Orchestrator) Chat(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
	return serve(o, &req, func() (models.ChatResponse, bool, error) {
		prompt := chatPrompt(&req)
		out, res := o.backends.Generate(ctx, prompt, o.cfg.ChatMaxLength)
		answer := o.guardAnswer(extractAnswer(firstOutput(out), prompt, markerChat))
		o.logger.Debug("Chat answered",
			zap.String("status", res.Status.String()),
			zap.String("backend", res.Backend),
			zap.Duration("elapsed", res.Elapsed))
		return models.ChatResponse{Response: answer}, res.Cacheable(), nil
	})
}

// GenerateNotice drafts a formal legal notice. Output that is too short or does not
// look like a notice is replaced with a template built from the request fields.
func (o *Orchestrator) GenerateNotice(ctx context.Context, req models.NoticeRequest) (models.NoticeResponse, error) {
	return serve(o, &req, func() (models.NoticeResponse, bool, error) {
		prompt := noticePrompt(&req)
		out, res := o.backends.Generate(ctx, prompt, o.cfg.NoticeMaxLength)
		notice := extractAnswer(firstOutput(out), prompt, markerNotice)
		if !validNotice(notice) {
			o.logger.Debug("Generated notice rejected; using template",
				zap.String("status", res.Status.String()),
				zap.Int("length", len(notice)))
			notice = noticeTemplateText(&req)
		}
		return models.NoticeResponse{Notice: notice}, res.Cacheable(), nil
	})
}

// Roadmap produces ordered steps for handling a legal issue. Fewer than three
// generated steps are replaced with a fixed eight-step plan.
func (o *Orchestrator) Roadmap(ctx context.Context, req models.RoadmapRequest) (models.RoadmapResponse, error) {
	return serve(o, &req, func() (models.RoadmapResponse, bool, error) {
		prompt := roadmapPrompt(&req)
		out, res := o.backends.Generate(ctx, prompt, o.cfg.RoadmapMaxLength)
		steps := utils.NonEmptyLines(extractAnswer(firstOutput(out), prompt, markerRoadmap))
		if len(steps) < minRoadmapSteps {
			steps = fallbackSteps(&req)
		}
		return models.RoadmapResponse{
			Steps:        steps,
			Jurisdiction: req.Jurisdiction,
			IssueType:    req.IssueType,
		}, res.Cacheable(), nil
	})
}
