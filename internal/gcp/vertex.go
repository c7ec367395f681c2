package gcp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/Lllllllleong/ocrdocumentflow/internal/models"
)

// --- OCR Model Prompts ---
const OCRSystemPrompt = "You are an optical character recognition engine. You transcribe the text visible in scanned documents and photos exactly as written. You never summarise, translate, correct, or comment."
const OCRUserPrompt = `Transcribe all text in the provided document.

Rules:
1. Output one line of text per printed or handwritten line, in reading order (top to bottom, left to right).
2. Preserve the original spelling, punctuation, numbers and casing.
3. For tables, output each row on its own line with cells separated by a single space.
4. Do not describe images, logos or layout. Do not add headings, labels or explanations.
5. If the document contains no text, return an empty response.

Return ONLY the transcribed text. Do not surround it with backtick fences.`

// refusalPhrases indicate the model declined instead of transcribing.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot transcribe",
	"i cannot provide",
	"as a large language model",
}

// VertexClient holds the pre-configured generative model used for OCR.
type VertexClient struct {
	OCRModel   *genai.GenerativeModel
	baseClient *genai.Client
}

// NewVertexClient creates a client with the OCR model configured.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	ocrModel := baseClient.GenerativeModel(modelName)
	ocrModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(OCRSystemPrompt)},
	}
	ocrModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}
	ocrModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		OCRModel:   ocrModel,
		baseClient: baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// VertexRecognizer sends document bytes inline to Gemini and splits the
// transcription into lines. It accepts images and PDFs.
type VertexRecognizer struct {
	client *VertexClient
}

func NewVertexRecognizer(client *VertexClient) *VertexRecognizer {
	return &VertexRecognizer{client: client}
}

func (r *VertexRecognizer) Recognize(ctx context.Context, image []byte) ([]models.Line, error) {
	filePart := genai.Blob{
		MIMEType: detectMIMEType(image),
		Data:     image,
	}
	resp, err := r.client.OCRModel.GenerateContent(ctx, filePart, genai.Text(OCRUserPrompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	text := responseText(resp)
	if isRefusal(text) {
		return nil, fmt.Errorf("gemini response indicates refusal: %q", text)
	}
	return splitLines(text), nil
}

// isRefusal reports whether the model declined instead of transcribing.
func isRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// detectMIMEType sniffs the upload. Gemini needs an explicit type per blob.
func detectMIMEType(data []byte) string {
	switch ct := http.DetectContentType(data); ct {
	case "application/pdf", "image/png", "image/jpeg":
		return ct
	default:
		return "image/jpeg"
	}
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}

	content := strings.TrimSpace(b.String())
	content = strings.TrimPrefix(content, "```text")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// splitLines turns a transcription into lines, dropping blank ones.
func splitLines(text string) []models.Line {
	var lines []models.Line
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, models.Line{Text: line})
	}
	return lines
}
