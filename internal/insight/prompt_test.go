package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"callscope/internal/model"
)

func TestExtractJSONFromMarkdown(t *testing.T) {
	plain := `{"text": "hello"}`
	assert.Equal(t, plain, extractJSONFromMarkdown(plain))
	assert.Equal(t, plain, extractJSONFromMarkdown("```json\n"+plain+"\n```"))
	assert.Equal(t, plain, extractJSONFromMarkdown("```\n"+plain+"\n```"))
	assert.Equal(t, plain, extractJSONFromMarkdown("  "+plain+"  \n"))
}

func TestBuildAnalysisPrompt(t *testing.T) {
	prompt := buildAnalysisPrompt(AnalyzeRequest{
		Transcript:   "A: Hi\nB: Hello",
		Language:     model.LanguageHebrew,
		ContextLabel: "Renewal call",
	})
	assert.Contains(t, prompt, "A: Hi\nB: Hello")
	assert.Contains(t, prompt, "Renewal call")
	assert.Contains(t, prompt, "Hebrew")
	// response shape the analyze stage parses
	assert.Contains(t, prompt, `"nuggets"`)
	assert.Contains(t, prompt, `"closing_outlook"`)
}

func TestBuildAnalysisPrompt_DefaultContext(t *testing.T) {
	prompt := buildAnalysisPrompt(AnalyzeRequest{Transcript: "A: Hi"})
	assert.Contains(t, prompt, "Untitled Conversation")
}

func TestBuildFollowupPrompt(t *testing.T) {
	prompt := buildFollowupPrompt(FollowupRequest{
		Transcript: "A: Hi",
		Analysis:   &model.Analysis{Nuggets: []string{"price sensitive"}},
		Feedback:   &model.Feedback{Text: "close earlier"},
		Channel:    "whatsapp",
		Tone:       "friendly",
		Language:   model.LanguageEnglish,
	})
	assert.Contains(t, prompt, "price sensitive")
	assert.Contains(t, prompt, "whatsapp")
	assert.Contains(t, prompt, "friendly")
	assert.Contains(t, prompt, `"message"`)
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Hebrew", languageName(model.LanguageHebrew))
	assert.Equal(t, "English", languageName(model.LanguageEnglish))
	assert.Equal(t, "Auto-detect", languageName(model.LanguageAuto))
	assert.Equal(t, "Auto-detect", languageName(""))
}

func TestCreateProvider(t *testing.T) {
	p, err := CreateProvider("service", "https://ai.example.com", "tok", "", "")
	assert.NoError(t, err)
	assert.Equal(t, "service", p.Name())

	p, err = CreateProvider("openai", "", "", "sk-test", "gpt-4o-mini")
	assert.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = CreateProvider("service", "", "", "", "")
	assert.Error(t, err)

	_, err = CreateProvider("oracle", "", "", "", "")
	assert.Error(t, err)
}
