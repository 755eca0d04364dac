// Package html annotates <img> tags in HTML fragments with their blurhash
// so pages can paint placeholders before the image loads.
package html

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/hackclub/blurhash/internal/assets"
)

var (
	imgRegex    = regexp.MustCompile(`<img\b[^>]*>`)
	srcRegex    = regexp.MustCompile(`\ssrc=["']([^"']+)["']`)
	widthRegex  = regexp.MustCompile(`\swidth=`)
	heightRegex = regexp.MustCompile(`\sheight=`)
)

type Transformer struct {
	assetService  *assets.Service
	publicBaseURL string
}

type TransformRequest struct {
	HTML string `json:"html"`
	// Rehost uploads external and data: images to storage first.
	Rehost bool `json:"rehost"`
}

type TransformResponse struct {
	HTML     string   `json:"html"`
	Messages []string `json:"messages,omitempty"`
	Stats    Stats    `json:"stats"`
}

type Stats struct {
	ImagesFound     int `json:"images_found"`
	ImagesAnnotated int `json:"images_annotated"`
	ImagesRehosted  int `json:"images_rehosted"`
}

func NewTransformer(assetService *assets.Service, publicBaseURL string) *Transformer {
	return &Transformer{
		assetService:  assetService,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/") + "/",
	}
}

// Transform adds data-blurhash, width and height to every <img> it can
// resolve. Images already carrying data-blurhash are left alone; failures
// become messages and leave the tag untouched.
func (t *Transformer) Transform(ctx context.Context, req *TransformRequest) (*TransformResponse, error) {
	var stats Stats
	var messages []string

	out := imgRegex.ReplaceAllStringFunc(req.HTML, func(tag string) string {
		stats.ImagesFound++
		if strings.Contains(tag, "data-blurhash=") {
			return tag
		}

		m := srcRegex.FindStringSubmatch(tag)
		if m == nil {
			return tag
		}
		src := html.UnescapeString(m[1])

		asset, rehosted, err := t.resolve(ctx, src, req.Rehost)
		if err != nil {
			messages = append(messages, fmt.Sprintf("Failed to resolve image %s: %v", truncate(src, 50), err))
			return tag
		}
		if asset == nil {
			return tag
		}

		if rehosted {
			tag = strings.Replace(tag, m[0], fmt.Sprintf(` src="%s"`, html.EscapeString(asset.URL)), 1)
			stats.ImagesRehosted++
			messages = append(messages, fmt.Sprintf("Image rehosted: %s -> %s", truncate(src, 50), asset.URL))
		}

		var attrs []string
		if asset.Blurhash != nil {
			attrs = append(attrs, fmt.Sprintf(`data-blurhash="%s"`, html.EscapeString(*asset.Blurhash)))
			stats.ImagesAnnotated++
		}
		if asset.Width > 0 && !widthRegex.MatchString(tag) {
			attrs = append(attrs, fmt.Sprintf(`width="%d"`, asset.Width))
		}
		if asset.Height > 0 && !heightRegex.MatchString(tag) {
			attrs = append(attrs, fmt.Sprintf(`height="%d"`, asset.Height))
		}
		return insertAttrs(tag, attrs)
	})

	return &TransformResponse{
		HTML:     out,
		Messages: messages,
		Stats:    stats,
	}, nil
}

// resolve looks up images already in storage and, when rehost is set,
// stores everything else. A nil asset means the image is skipped.
func (t *Transformer) resolve(ctx context.Context, src string, rehost bool) (*assets.Asset, bool, error) {
	if key, ok := strings.CutPrefix(src, t.publicBaseURL); ok {
		asset, err := t.assetService.GetAsset(ctx, key)
		return asset, false, err
	}
	if !rehost {
		return nil, false, nil
	}

	switch {
	case strings.HasPrefix(src, "data:"):
		asset, err := t.assetService.ProcessFromDataURI(ctx, src)
		return asset, err == nil, err
	case strings.HasPrefix(src, "https://"):
		asset, err := t.assetService.ProcessFromURL(ctx, src)
		return asset, err == nil, err
	}
	// blob:, relative and plain http URLs cannot be fetched server side
	return nil, false, nil
}

func insertAttrs(tag string, attrs []string) string {
	if len(attrs) == 0 {
		return tag
	}
	body, closing := strings.TrimSuffix(tag, ">"), ">"
	if strings.HasSuffix(body, "/") {
		body, closing = strings.TrimSuffix(body, "/"), " />"
	}
	return strings.TrimRight(body, " ") + " " + strings.Join(attrs, " ") + closing
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
