// Package taskstate maps provider task states onto the three states the product exposes
// and decorates model URLs for clients that must not see cached assets
package taskstate

import (
	"strconv"
	"strings"
	"time"
)

// Status is a normalized task state
type Status string

const (
	Processing Status = "PROCESSING"
	Succeeded  Status = "SUCCEEDED"
	Failed     Status = "FAILED"

	// Unknown is only shown for history rows with no stored status
	Unknown Status = "UNKNOWN"
)

// Map normalizes a provider status; anything unrecognised is still in flight
func Map(provider string) Status {
	switch strings.ToUpper(strings.TrimSpace(provider)) {
	case "SUCCEEDED":
		return Succeeded
	case "FAILED", "EXPIRED", "CANCELED", "CANCELLED":
		return Failed
	default:
		return Processing
	}
}

// Terminal reports whether s will not change again
func Terminal(s Status) bool { return s == Succeeded || s == Failed }

// Display is the history view of a stored status
func Display(stored string) Status {
	s := strings.ToUpper(strings.TrimSpace(stored))
	if s == "" {
		return Unknown
	}
	return Status(s)
}

// Kind is the generation flavour
type Kind string

const (
	Image Kind = "image"
	Text  Kind = "text"
)

// Valid reports whether k is a known kind
func (k Kind) Valid() bool { return k == Image || k == Text }

// Label is the human name used in ledger descriptions
func (k Kind) Label() string {
	if k == Text {
		return "Text to 3D"
	}
	return "Image to 3D"
}

// Slug is the kind as history clients name it; blank for unknown kinds
func (k Kind) Slug() string {
	switch k {
	case Image:
		return "image-to-3d"
	case Text:
		return "text-to-3d"
	}
	return ""
}

// ModelURLs are the downloadable formats of a finished model
type ModelURLs struct {
	GLB  string `json:"glb,omitempty"`
	OBJ  string `json:"obj,omitempty"`
	FBX  string `json:"fbx,omitempty"`
	USDZ string `json:"usdz,omitempty"`
}

// Empty reports whether no format is known
func (m ModelURLs) Empty() bool { return m == ModelURLs{} }

// TextureURLs is one material's texture set
type TextureURLs struct {
	BaseColor string `json:"base_color,omitempty"`
	Metallic  string `json:"metallic,omitempty"`
	Normal    string `json:"normal,omitempty"`
	Roughness string `json:"roughness,omitempty"`
}

// DeriveFormats builds every format from the glb location by swapping the extension
// Other formats are only derived when glb ends in .glb
func DeriveFormats(glb string) ModelURLs {
	if glb == "" {
		return ModelURLs{}
	}
	out := ModelURLs{GLB: glb}
	path, query, _ := strings.Cut(glb, "?")
	if !strings.HasSuffix(strings.ToLower(path), ".glb") {
		return out
	}
	base := path[:len(path)-len(".glb")]
	with := func(ext string) string {
		if query == "" {
			return base + ext
		}
		return base + ext + "?" + query
	}
	out.OBJ = with(".obj")
	out.FBX = with(".fbx")
	out.USDZ = with(".usdz")
	return out
}

// CacheBust appends t=<unix ms> so browsers and CDNs refetch
// Blank values and data URIs are returned as they are
func CacheBust(url string, now time.Time) string {
	if url == "" || strings.HasPrefix(url, "data:") {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "t=" + strconv.FormatInt(now.UnixMilli(), 10)
}

// BustModelURLs applies CacheBust to every format
func BustModelURLs(m ModelURLs, now time.Time) ModelURLs {
	return ModelURLs{
		GLB:  CacheBust(m.GLB, now),
		OBJ:  CacheBust(m.OBJ, now),
		FBX:  CacheBust(m.FBX, now),
		USDZ: CacheBust(m.USDZ, now),
	}
}

// BustTextures applies CacheBust to every texture of every material
func BustTextures(ts []TextureURLs, now time.Time) []TextureURLs {
	if len(ts) == 0 {
		return ts
	}
	out := make([]TextureURLs, len(ts))
	for i, t := range ts {
		out[i] = TextureURLs{
			BaseColor: CacheBust(t.BaseColor, now),
			Metallic:  CacheBust(t.Metallic, now),
			Normal:    CacheBust(t.Normal, now),
			Roughness: CacheBust(t.Roughness, now),
		}
	}
	return out
}
