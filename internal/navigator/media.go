package navigator

import (
	"strings"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
)

// MediaKind distinguishes the two kinds of page-bound media.
type MediaKind string

const (
	MediaSimulation MediaKind = "simulation"
	MediaVideo      MediaKind = "video"
)

// Media is a simulation or video opened when its page is shown. URL is
// ready to embed in an iframe.
type Media struct {
	Kind MediaKind `json:"kind"`
	Page int       `json:"page"`
	URL  string    `json:"url"`
}

// EmbedURL rewrites YouTube watch, youtu.be and shorts links to their
// /embed/ form. Other URLs are returned unchanged.
func EmbedURL(url string) string {
	switch {
	case url == "":
		return url
	case strings.Contains(url, "youtube.com/watch"):
		return strings.Replace(url, "watch?v=", "embed/", 1)
	case strings.Contains(url, "youtu.be/"):
		return "https://www.youtube.com/embed/" + videoID(url, "youtu.be/")
	case strings.Contains(url, "youtube.com/shorts/"):
		return "https://www.youtube.com/embed/" + videoID(url, "shorts/")
	}
	return url
}

func videoID(url, marker string) string {
	rest := url[strings.Index(url, marker)+len(marker):]
	if i := strings.IndexAny(rest, "?&"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// mediaFor returns the first simulation and first video bound to page.
func mediaFor(page int, sims, videos []config.Media) []Media {
	var out []Media
	for _, s := range sims {
		if s.Page == page {
			out = append(out, Media{Kind: MediaSimulation, Page: page, URL: s.URL})
			break
		}
	}
	for _, v := range videos {
		if v.Page == page {
			out = append(out, Media{Kind: MediaVideo, Page: page, URL: EmbedURL(v.URL)})
			break
		}
	}
	return out
}
