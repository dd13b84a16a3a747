// Package imageurl derives CDN URLs for catalog image assets.
package imageurl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const defaultBaseURL = "https://cdn.sanity.io/images"

type Options struct {
	Width   int
	Height  int
	Format  string // jpg, png, webp
	Quality int
}

type Builder struct {
	BaseURL   string
	ProjectID string
	Dataset   string
}

func New(projectID, dataset string) *Builder {
	return &Builder{BaseURL: defaultBaseURL, ProjectID: projectID, Dataset: dataset}
}

// URL turns an asset reference of the form image-<id>-<w>x<h>-<ext> into a
// CDN URL. Absolute http(s) URLs and root-relative paths are returned as-is;
// an empty or unparseable reference yields "".
func (b *Builder) URL(ref string, opts Options) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "/") {
		return ref
	}
	file, ok := assetFile(ref)
	if !ok || b == nil || b.ProjectID == "" {
		return ""
	}
	base := b.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	u := fmt.Sprintf("%s/%s/%s/%s", strings.TrimRight(base, "/"), b.ProjectID, b.Dataset, file)

	q := url.Values{}
	if opts.Width > 0 {
		q.Set("w", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		q.Set("h", strconv.Itoa(opts.Height))
	}
	if opts.Format != "" {
		q.Set("fm", opts.Format)
	}
	if opts.Quality > 0 {
		q.Set("q", strconv.Itoa(opts.Quality))
	}
	if len(q) == 0 {
		return u
	}
	return u + "?" + q.Encode()
}

func assetFile(ref string) (string, bool) {
	parts := strings.Split(ref, "-")
	if len(parts) < 4 || parts[0] != "image" {
		return "", false
	}
	ext := parts[len(parts)-1]
	dims := parts[len(parts)-2]
	id := strings.Join(parts[1:len(parts)-2], "-")
	if id == "" || ext == "" || !strings.Contains(dims, "x") {
		return "", false
	}
	return id + "-" + dims + "." + ext, true
}
