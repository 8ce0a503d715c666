package ocr

import (
	"context"
	"image"
	"strings"

	"github.com/nikhilbhutani/labocr/internal/llm"
)

const visionEngine = "vision"

const visionSystemPrompt = "You are an OCR engine for medical laboratory reports. You transcribe text exactly as printed and never interpret, summarise or correct it."

const visionPrompt = "Extract ALL text visible in this image. Keep each table row of the report on its own line with the test name, result, unit and reference range in printed order. Return only the text."

// VisionRecognizer reads the raster with a vision-capable LLM.
type VisionRecognizer struct {
	gateway  llm.Gateway
	provider string
	model    string
}

// NewVisionRecognizer uses the gateway defaults when provider or model is empty.
func NewVisionRecognizer(gw llm.Gateway, provider, model string) *VisionRecognizer {
	return &VisionRecognizer{gateway: gw, provider: provider, model: model}
}

func (v *VisionRecognizer) Name() string { return visionEngine }

func (v *VisionRecognizer) Recognize(ctx context.Context, raster *image.Gray) (string, error) {
	if err := CheckRaster(visionEngine, raster); err != nil {
		return "", err
	}

	data, err := EncodePNG(raster)
	if err != nil {
		return "", &RecognitionError{Engine: visionEngine, Err: err}
	}

	resp, err := v.gateway.Chat(ctx, llm.ChatRequest{
		Provider:    v.provider,
		Model:       v.model,
		Messages: []llm.Message{
			{Role: "system", Content: visionSystemPrompt},
			{
				Role:    "user",
				Content: visionPrompt,
				Images:  []llm.Image{{MimeType: "image/png", Data: data}},
			},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &RecognitionError{Engine: visionEngine, Err: err}
	}

	return stripFences(resp.Content), nil
}

// stripFences drops a surrounding markdown code fence some models add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
