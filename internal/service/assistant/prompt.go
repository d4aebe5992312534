package assistant

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"medbot/internal/knowledge"
	"medbot/internal/models"
	"medbot/internal/service/ai"
)

// ContextPlaceholder is replaced by the knowledge context in SystemPromptTemplate.
const ContextPlaceholder = "{context}"

// SystemPromptTemplate is the MedBot charter sent once per request.
const SystemPromptTemplate = `You are MedBot, a helpful medical information assistant. You provide general health information based on medical literature and guidelines.

IMPORTANT SAFETY DISCLAIMERS:
- You are NOT a substitute for professional medical advice, diagnosis, or treatment
- Always recommend consulting healthcare professionals for medical concerns
- For emergencies, advise calling emergency services immediately
- Do not provide specific diagnoses or treatment recommendations
- Focus on general information and when to seek professional help

Your capabilities include:
1. Symptom information and when to seek care
2. General medication information (not prescribing)
3. Health and wellness tips
4. Disease education and prevention

Always include appropriate disclaimers and encourage professional medical consultation when needed.

Use the following medical context when available: {context}

Maintain a caring, professional tone while being informative and helpful.`

// Prompt is everything assembled for one model call. It is built fresh per
// request and not retained.
type Prompt struct {
	// Latest is the content the knowledge lookup ran against.
	Latest  string
	Matches knowledge.Matches
	System  string
	// Messages is System followed by the caller's history, in eino form.
	Messages []*schema.Message
}

// RenderSystemPrompt substitutes the single placeholder with contextText.
func RenderSystemPrompt(contextText string) string {
	return strings.Replace(SystemPromptTemplate, ContextPlaceholder, contextText, 1)
}

// BuildPrompt runs the knowledge lookup on the newest message and assembles the
// system prompt. An empty history yields an empty context.
func BuildPrompt(history []models.Message) Prompt {
	latest := models.LatestContent(history)
	matches := knowledge.Match(latest)
	system := RenderSystemPrompt(matches.Context())
	return Prompt{
		Latest:   latest,
		Matches:  matches,
		System:   system,
		Messages: ai.ConvertMessages(system, history),
	}
}
