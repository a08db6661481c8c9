package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"omnihub.io/internal/gateway"
)

// Channel is one entry in the live-TV directory.
type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Logo     string `json:"logo,omitempty"`
}

// Directory is the static live-TV channel catalog. Browsing it is
// free; resolving a playable stream for a channel is metered.
type Directory struct {
	channels []Channel
	byID     map[string]Channel
}

func NewDirectory(channels []Channel) *Directory {
	d := &Directory{byID: make(map[string]Channel, len(channels))}
	for _, c := range channels {
		if _, dup := d.byID[c.ID]; dup {
			continue
		}
		d.channels = append(d.channels, c)
		d.byID[c.ID] = c
	}
	return d
}

// DefaultDirectory returns the built-in channel catalog.
func DefaultDirectory() *Directory {
	return NewDirectory([]Channel{
		{ID: "geo-news", Name: "Geo News", Category: "news"},
		{ID: "ary-news", Name: "ARY News", Category: "news"},
		{ID: "samaa-tv", Name: "Samaa TV", Category: "news"},
		{ID: "dunya-news", Name: "Dunya News", Category: "news"},
		{ID: "ptv-sports", Name: "PTV Sports", Category: "sports"},
		{ID: "a-sports", Name: "A Sports", Category: "sports"},
		{ID: "ten-sports", Name: "Ten Sports", Category: "sports"},
		{ID: "hum-tv", Name: "Hum TV", Category: "entertainment"},
		{ID: "ary-digital", Name: "ARY Digital", Category: "entertainment"},
		{ID: "geo-entertainment", Name: "Geo Entertainment", Category: "entertainment"},
	})
}

func (d *Directory) Channels() []Channel {
	out := make([]Channel, len(d.channels))
	copy(out, d.channels)
	return out
}

func (d *Directory) ByCategory(category string) []Channel {
	var out []Channel
	for _, c := range d.channels {
		if strings.EqualFold(c.Category, category) {
			out = append(out, c)
		}
	}
	return out
}

func (d *Directory) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range d.channels {
		if !seen[c.Category] {
			seen[c.Category] = true
			out = append(out, c.Category)
		}
	}
	sort.Strings(out)
	return out
}

func (d *Directory) Find(id string) (Channel, bool) {
	c, ok := d.byID[id]
	return c, ok
}

// LiveTV resolves a playable stream URL for a directory channel.
type LiveTV struct {
	dir     *Directory
	baseURL string
}

func NewLiveTV(dir *Directory, baseURL string) *LiveTV {
	return &LiveTV{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (l *LiveTV) Name() string { return "live_tv" }

func (l *LiveTV) Directory() *Directory { return l.dir }

func (l *LiveTV) Invoke(ctx context.Context, payload any) (*gateway.Response, error) {
	id, ok := payload.(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("live tv: empty channel id")
	}
	c, ok := l.dir.Find(id)
	if !ok {
		return nil, fmt.Errorf("live tv: unknown channel %q", id)
	}
	return &gateway.Response{
		Status:  gateway.StatusSuccess,
		Success: true,
		Detail:  c.ID,
		Body: map[string]any{
			"channel":    c,
			"stream_url": l.baseURL + "/hls/" + c.ID + "/index.m3u8",
		},
	}, nil
}
