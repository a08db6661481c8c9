package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"omnihub.io/internal/gateway"
)

// ImageEnhance submits an image URL to an upscaling service and
// returns the enhanced asset location.
type ImageEnhance struct {
	baseURL string
	client  *http.Client
}

func NewImageEnhance(baseURL string, client *http.Client) *ImageEnhance {
	if client == nil {
		client = http.DefaultClient
	}
	return &ImageEnhance{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (i *ImageEnhance) Name() string { return "image_enhance" }

func (i *ImageEnhance) Invoke(ctx context.Context, payload any) (*gateway.Response, error) {
	imageURL, ok := payload.(string)
	if !ok || imageURL == "" {
		return nil, fmt.Errorf("image enhance: empty image url")
	}

	body, err := json.Marshal(map[string]string{"image_url": imageURL, "scale": "2x"})
	if err != nil {
		return nil, fmt.Errorf("image enhance: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/v1/enhance", strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("image enhance: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image enhance: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image enhance: upstream status %d", resp.StatusCode)
	}
	var out struct {
		OutputURL string `json:"output_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("image enhance: decode response: %w", err)
	}
	if out.OutputURL == "" {
		return nil, fmt.Errorf("image enhance: upstream returned no output")
	}
	return &gateway.Response{
		Status:  gateway.StatusSuccess,
		Success: true,
		Body: map[string]any{
			"source_url":   imageURL,
			"enhanced_url": out.OutputURL,
			"scale":        "2x",
		},
	}, nil
}
