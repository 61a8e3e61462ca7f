package core

import (
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/dream-atlas/backend/internal/store"
)

// System instructions keep the tone exploratory and non-diagnostic; vision
// variants additionally ask the model to ground itself in what the images
// actually show.
const (
	summarySystemInstruction = "You specialise in dreams and symbolic imagery. You avoid medical or diagnostic language and keep things exploratory."

	aggregateSystemInstruction = "You speak like a thoughtful dream guide, not a therapist. You emphasise curiosity and self-reflection."

	aggregateVisionSystemInstruction = aggregateSystemInstruction + " When analyzing dream images, describe specific visual elements you see (colors, objects, composition, mood, settings) and connect them to the themes and patterns across the dreams."

	chatSystemInstruction = "You are a dream-pattern guide. You see a list of someone's dreams over a period of time and chat with them about themes, emotions and symbols. You never diagnose or give medical advice. You emphasise curiosity and gentle self-reflection. Keep your replies concise: at most 2 short paragraphs or 4-6 sentences total (around 120 words), focusing on the heart of the question rather than repeating the full context."

	chatVisionSystemInstruction = "You are a dream-pattern guide. You see a list of someone's dreams over a period of time and chat with them about themes, emotions and symbols. IMPORTANT: When images or videos are provided with dreams, you can see and analyze them. Describe specific visual details you observe in the media (colors, objects, composition, mood, settings, people, animals, movement, etc.) and connect them to the dream themes. You never diagnose or give medical advice. You emphasise curiosity and gentle self-reflection. Keep your replies concise: at most 2 short paragraphs or 4-6 sentences total (around 120 words), focusing on the heart of the question rather than repeating the full context."
)

func buildSummaryPrompt(dream store.Dream) string {
	desc := "(no description provided)"
	if dream.Description != nil && strings.TrimSpace(*dream.Description) != "" {
		desc = truncate(*dream.Description, textOnlyDescLimit)
	}

	return strings.Join([]string{
		"You are an oneirology-inspired AI that helps someone explore their recurring motifs in dreams.",
		"",
		"Dream title: " + dream.Title,
		"Dream date: " + dream.DreamDate,
		"",
		"Dream description:",
		desc,
		"",
		"1) Give a short, poetic summary in 2-3 sentences.",
		"2) Name 3-5 key symbols or motifs and what they might represent psychologically.",
		"3) Suggest 1 gentle reflection question the dreamer could ask themselves.",
		"",
		"IMPORTANT: Return your answer as a small HTML fragment (no <html> or <body> tags).",
		"DO NOT wrap your response in markdown code blocks (no ```html or ```). Return ONLY the raw HTML.",
		"Structure it with:",
		`- A <h3> title like "What this dream is circling around".`,
		"- A couple of <p> paragraphs for the narrative summary.",
		`- A <h4> "Symbols" heading followed by a <ul><li> list of motifs.`,
		`- A <h4> "A question to sit with" heading with one <p> reflective question.`,
		"You may use <strong> and <em> for gentle emphasis, but keep the tone grounded and non-prescriptive.",
	}, "\n")
}

func buildAggregatePrompt(c *Context, maxDescLen int, withImages bool) string {
	lines := []string{
		"You are helping someone explore patterns across several dreams.",
		"",
		fmt.Sprintf("Here are their dreams between %s and %s:", c.PeriodStart, c.PeriodEnd),
		"",
	}
	lines = append(lines, c.DreamLines(maxDescLen)...)
	lines = append(lines, "")
	if withImages {
		lines = append(lines, "Please analyze these dreams, taking into account both the text descriptions and the images (where provided).")
	}
	lines = append(lines,
		"Please:",
		"1) Summarise recurring themes, settings, and emotional tones.",
		"2) Point out 3-7 motifs that appear more than once.",
		"3) Offer a short paragraph on how these might connect to waking life (without making diagnoses).",
		"4) Finish with 2 or 3 reflection prompts they can journal on.",
		"",
		"IMPORTANT: Return your answer as a short HTML fragment, no <html> or <body> tags.",
		"DO NOT wrap your response in markdown code blocks (no ```html or ```). Return ONLY the raw HTML.",
		"Use simple, clean structure:",
		`- A <h3> "Themes" section with paragraphs.`,
		`- A <h3> "Motifs" section with a <ul><li> list of motifs.`,
		`- A <h3> "Reflection prompts" section with <ul><li> questions.`,
		"You may use <strong> and <em> for gentle emphasis, but avoid overly decorative markup.",
		"Keep it under ~500 words, warm in tone, and easy to read.",
	)
	return strings.Join(lines, "\n")
}

func buildChatContextText(c *Context, maxDescLen int) string {
	lines := []string{"The user is exploring patterns across their dreams."}
	if c.PeriodStart != "" && c.PeriodEnd != "" {
		lines = append(lines, fmt.Sprintf("The period is from %s to %s.", c.PeriodStart, c.PeriodEnd))
	}
	lines = append(lines, "Here is a compact list of their dreams in this window:")
	lines = append(lines, strings.Join(c.DreamLines(maxDescLen), "\n"))
	return strings.Join(lines, "\n")
}

// imageParts renders each context image bracketed by explicit start/end
// markers so a multi-image prompt stays attributable to its dream.
func imageParts(c *Context) []genai.Part {
	parts := make([]genai.Part, 0, len(c.Images)*3)
	for _, img := range c.Images {
		parts = append(parts,
			genai.Text(fmt.Sprintf("[Image for the dream %q from %s:]", img.DreamTitle, img.DreamDate)),
			genai.ImageData(img.Format, img.Data),
			genai.Text(fmt.Sprintf("[End of image for %q]", img.DreamTitle)),
		)
	}
	return parts
}
