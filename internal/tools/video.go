package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"omnihub.io/internal/gateway"
)

// VideoDownload resolves YouTube metadata and builds download links
// through an oEmbed-compatible metadata service.
type VideoDownload struct {
	metadataURL string
	client      *http.Client
}

func NewVideoDownload(metadataURL string, client *http.Client) *VideoDownload {
	if client == nil {
		client = http.DefaultClient
	}
	return &VideoDownload{metadataURL: strings.TrimRight(metadataURL, "/"), client: client}
}

func (v *VideoDownload) Name() string { return "youtube_download" }

// ExtractVideoID pulls the 11-character video id out of the URL forms
// YouTube serves: watch, short links, shorts, and embeds.
func ExtractVideoID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		return id, validVideoID(id)
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return id, validVideoID(id)
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
				id, _, _ := strings.Cut(rest, "/")
				return id, validVideoID(id)
			}
		}
	}
	return "", false
}

func validVideoID(id string) bool {
	if len(id) != 11 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func (v *VideoDownload) Invoke(ctx context.Context, payload any) (*gateway.Response, error) {
	raw, ok := payload.(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("video download: empty url")
	}
	id, ok := ExtractVideoID(raw)
	if !ok {
		return nil, fmt.Errorf("video download: unrecognized url %q", raw)
	}
	watchURL := "https://www.youtube.com/watch?v=" + id

	u := v.metadataURL + "/embed?url=" + url.QueryEscape(watchURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("video download: build request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video download: metadata status %d", resp.StatusCode)
	}
	var meta struct {
		Title        string `json:"title"`
		AuthorName   string `json:"author_name"`
		ThumbnailURL string `json:"thumbnail_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("video download: decode metadata: %w", err)
	}
	return &gateway.Response{
		Status:  gateway.StatusSuccess,
		Success: true,
		Detail:  id,
		Body: map[string]any{
			"video_id":  id,
			"title":     meta.Title,
			"channel":   meta.AuthorName,
			"thumbnail": meta.ThumbnailURL,
			"links": []map[string]string{
				{"quality": "720p", "format": "mp4", "url": "https://dl.omnihub.io/yt/" + id + "/720"},
				{"quality": "360p", "format": "mp4", "url": "https://dl.omnihub.io/yt/" + id + "/360"},
				{"quality": "audio", "format": "m4a", "url": "https://dl.omnihub.io/yt/" + id + "/audio"},
			},
		},
	}, nil
}
