package insight

import (
	"fmt"
	"strings"

	"callscope/internal/model"
)

// Generic, neutral B2C sales guidelines.
const baseSalesGuidelines = `You are analyzing a B2C sales conversation (seller talking to an individual consumer).

A solid B2C sales conversation usually:
- Builds quick rapport and trust.
- Understands the customer's personal context, needs, pains, or desires.
- Clarifies what matters most to the customer (price, convenience, quality, speed, emotion, status, etc.).
- Connects the product or service clearly to those needs and motivations.
- Handles doubts and objections calmly (price concerns, trust, timing, alternatives).
- Makes the next step simple and clear (trial, purchase, follow-up, scheduling).
- Avoids pressure and stays helpful, honest, and human.

Your analysis should:
- Stay neutral and not assume any specific industry.
- Focus on clarity and practical advice that can help improve conversion and retention.`

const analysisSystemPrompt = "You are a neutral, practical B2C sales coach and call analyst. Return valid JSON only."

// buildAnalysisPrompt builds the user prompt for the analyze operation.
func buildAnalysisPrompt(req AnalyzeRequest) string {
	contextLabel := req.ContextLabel
	if contextLabel == "" {
		contextLabel = "Untitled Conversation"
	}

	return fmt.Sprintf(`You are a senior B2C sales coach helping a salesperson improve their calls.

Context label: %s
Language of the call: %s

Sales guidelines for this analysis:
%s

Here is the full call transcript (it may contain automatic transcription errors):

---------------- TRANSCRIPT START ----------------
%s
---------------- TRANSCRIPT END ----------------

Return a concise, neutral, practical analysis as a JSON object with exactly these fields:

{
  "nuggets": ["3-5 short concrete insights that will help move this customer closer to purchase or reduce the risk of losing them"],
  "patterns": {
    "well_done": ["what was done well in this conversation"],
    "gaps": ["what seemed missing, weak, confusing, or risky from a B2C perspective"]
  },
  "risks": ["main doubts or risks that could lose this customer"],
  "next_questions": ["1-3 things the salesperson should focus on or ask in the next interaction"],
  "closing_outlook": {
    "score": 0.0,
    "reason": "short paragraph: how likely the customer is to buy based on this call and what is needed to move them toward a successful purchase"
  }
}

closing_outlook.score is a number from 0 to 1. All arrays are required; use [] when nothing applies.`,
		contextLabel, languageName(req.Language), baseSalesGuidelines, req.Transcript)
}

const feedbackSystemPrompt = "You are a neutral, practical B2C sales coach. Return valid JSON only."

// buildFeedbackPrompt builds the user prompt for the feedback operation.
func buildFeedbackPrompt(req FeedbackRequest) string {
	var analysisBlock string
	if req.Analysis != nil {
		analysisBlock = fmt.Sprintf(`Below is the structured analysis of the conversation:
- Golden nuggets: %s
- Done well: %s
- Gaps: %s
- Risks: %s
- Closing outlook: %.2f (%s)`,
			strings.Join(req.Analysis.Nuggets, "; "),
			strings.Join(req.Analysis.Patterns.WellDone, "; "),
			strings.Join(req.Analysis.Patterns.Gaps, "; "),
			strings.Join(req.Analysis.Risks, "; "),
			req.Analysis.ClosingOutlook.Score,
			req.Analysis.ClosingOutlook.Reason)
	}

	return fmt.Sprintf(`You are coaching a salesperson after a B2C sales call.
Language of the call: %s

Below is the conversation transcript:
---------------------
%s
---------------------

%s

Write direct, constructive coaching feedback for the salesperson: what to keep
doing, what to change, and one concrete exercise for the next call. Stay human
and encouraging, never generic.

Return a JSON object: {"text": "<the feedback, markdown allowed>"}`,
		languageName(req.Language), req.Transcript, analysisBlock)
}

const followupSystemPrompt = `You are helping a B2C sales representative follow up after a phone call.
Create communication that is:
- Warm, concise, natural, and human.
- Focused on trust, clarity, and next steps.
- Avoids pressure or pushiness.
- Highlights value, benefits, or progress.
Return valid JSON only.`

// buildFollowupPrompt builds the user prompt for the followup operation.
func buildFollowupPrompt(req FollowupRequest) string {
	var analysisBlock string
	if req.Analysis != nil {
		analysisBlock = fmt.Sprintf(`Below is the analysis of the conversation:
---------------------
Nuggets: %s
Risks: %s
Closing outlook: %.2f (%s)
---------------------`,
			strings.Join(req.Analysis.Nuggets, "; "),
			strings.Join(req.Analysis.Risks, "; "),
			req.Analysis.ClosingOutlook.Score,
			req.Analysis.ClosingOutlook.Reason)
	}

	var feedbackBlock string
	if req.Feedback != nil && req.Feedback.Text != "" {
		feedbackBlock = fmt.Sprintf("Coaching feedback already given to the salesperson:\n%s", req.Feedback.Text)
	}

	return fmt.Sprintf(`You are an expert B2C sales assistant.

Below is the conversation transcript:
---------------------
%s
---------------------

%s

%s

Channel for the follow-up message: %s
Tone: %s
Language of the call: %s

Based on this, produce a JSON object with exactly these fields:

{
  "message": "the follow-up message to send to the customer (short, friendly, clear; goal: move the customer one step forward)",
  "brief": "internal salesperson brief: what happened, customer intent signals, where to focus next time",
  "plan": "closing continuation plan: the next 2-3 steps to maintain momentum, how to reinforce closing points, risks to watch for"
}`,
		req.Transcript, analysisBlock, feedbackBlock, req.Channel, req.Tone, languageName(req.Language))
}

func languageName(code string) string {
	switch code {
	case model.LanguageHebrew:
		return "Hebrew"
	case model.LanguageEnglish:
		return "English"
	default:
		return "Auto-detect"
	}
}
