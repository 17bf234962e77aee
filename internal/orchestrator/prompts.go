package orchestrator

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kanoon/internal/models"
)

// Markers end each prompt. Generators echo the prompt, so the answer is whatever
// follows it.
const (
	markerChat    = "Legal response:"
	markerNotice  = "THE COMPLETE NOTICE TEXT:"
	markerRoadmap = "THE ROADMAP STEPS:"
	markerAsk     = "Answer:"
)

const chatTemplate = `You are KanoonSahayak, an expert Indian legal assistant trained in Indian law. Provide accurate, helpful legal information based on Indian laws and regulations.

Question: %s

Please provide a comprehensive answer based on Indian law, citing relevant sections, acts, or legal precedents when possible.

` + markerChat

const noticeTemplate = `Generate a formal Indian legal notice with the following details:

RECIPIENT: %s
ADDRESS: %s
SUBJECT: %s
NOTICE TYPE: %s
JURISDICTION: %s
CASE DETAILS: %s
SENDER: %s

The notice must follow Indian legal format and include:
1. A formal "LEGAL NOTICE" header
2. Date and reference number
3. Recipient name and address
4. Subject line
5. Formal salutation
6. Body describing the facts and the legal basis under Indian law
7. Clear demands with a compliance deadline
8. Closing with the sender's name

` + markerNotice

const roadmapTemplate = `Create a detailed Indian legal roadmap for handling '%s' in %s.
Include steps for the Indian legal system, required documents, relevant authorities and courts, and estimated timeframes for a %s process.

` + markerRoadmap

const askTemplate = `You are KanoonSahayak, an Indian legal assistant. Answer the question using the reference passages below. If they do not cover the question, answer from general knowledge of Indian law and say so.

Reference passages:
%s

Question: %s

` + markerAsk

const noContextPassage = "No reference passages were found."

func chatPrompt(req *models.ChatRequest) string {
	return fmt.Sprintf(chatTemplate, strings.TrimSpace(req.Question))
}

func noticePrompt(req *models.NoticeRequest) string {
	return fmt.Sprintf(noticeTemplate,
		req.RecipientName,
		req.RecipientAddress,
		req.Subject,
		req.NoticeType,
		req.Jurisdiction,
		req.CaseDetails,
		req.YourName,
	)
}

func roadmapPrompt(req *models.RoadmapRequest) string {
	return fmt.Sprintf(roadmapTemplate, req.IssueType, req.Jurisdiction, strings.ToLower(req.Timeline))
}

func askPrompt(question, passages string) string {
	if passages == "" {
		passages = noContextPassage
	}
	return fmt.Sprintf(askTemplate, passages, strings.TrimSpace(question))
}

// noticeTemplateText is the notice returned when the generator output fails the guard.
func noticeTemplateText(req *models.NoticeRequest) string {
	var b strings.Builder
	b.WriteString("LEGAL NOTICE\n\n")
	b.WriteString("DATE: [Current Date]\n\n")
	fmt.Fprintf(&b, "TO:\n%s\n%s\n\n", req.RecipientName, req.RecipientAddress)
	fmt.Fprintf(&b, "RE: %s\n\n", req.Subject)
	fmt.Fprintf(&b, "Dear %s,\n\n", req.RecipientName)
	fmt.Fprintf(&b, "This is to formally notify you that this letter constitutes a legal notice under the laws of %s, regarding %s.\n\n",
		req.Jurisdiction, req.Subject)
	fmt.Fprintf(&b, "%s\n\n", req.CaseDetails)
	b.WriteString("You are hereby called upon to comply with the above within 15 (fifteen) days of receipt of this notice, " +
		"failing which my client/I shall be constrained to initiate appropriate legal proceedings against you " +
		"at your risk as to costs and consequences.\n\n")
	b.WriteString("This notice is issued without prejudice to any other rights and remedies available under law, " +
		"all of which are expressly reserved.\n\n")
	fmt.Fprintf(&b, "Sincerely,\n%s", req.YourName)
	return b.String()
}

// fallbackSteps is the roadmap returned when the generator output has fewer than three steps.
func fallbackSteps(req *models.RoadmapRequest) []string {
	return []string{
		fmt.Sprintf("Step 1: Initial assessment of your %s situation under Indian law", req.IssueType),
		fmt.Sprintf("Step 2: Gather necessary documentation including Aadhaar card, PAN card, and relevant evidence for %s", req.IssueType),
		fmt.Sprintf("Step 3: Consult with an advocate specializing in %s matters in %s", req.IssueType, req.Jurisdiction),
		"Step 4: Draft and file appropriate petition/application with the relevant court or authority (District Court/High Court/National Commission as applicable)",
		"Step 5: Pay the required court fees and ensure proper filing as per Civil Procedure Code requirements",
		"Step 6: Attend hearings as scheduled and follow advocate's guidance",
		"Step 7: Monitor progress through the Indian judicial system and prepare for potential appeals if necessary",
		"Step 8: Follow the guidance of the legal professionals involved, respecting Indian law and court proceedings",
	}
}
