package customerstories

import (
	"fmt"
	"strings"
	"time"
)

// ProductRef is a named product integration referenced by a story card.
// Icon fields may be empty; IconLocal is only ever set after a successful
// download.
type ProductRef struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	IconAlt   string `json:"iconAlt"`
	IconLocal string `json:"iconLocal,omitempty"`
}

type Company struct {
	Logo      string `json:"logo"`
	LogoLocal string `json:"logoLocal,omitempty"`
}

type Media struct {
	HeaderImage      string `json:"headerImage"`
	HeaderImageAlt   string `json:"headerImageAlt"`
	HeaderImageLocal string `json:"headerImageLocal,omitempty"`
}

// StoryRecord is one customer story instance found on a listing page.
// Records with an empty Title or StoryUrl are dropped at extraction time
// and never enter the accumulated set.
type StoryRecord struct {
	Page              int          `json:"page"`
	PositionOnPage    int          `json:"positionOnPage"`
	GlobalId          string       `json:"globalId"`
	Title             string       `json:"title"`
	Industry          string       `json:"industry"`
	StoryUrl          string       `json:"storyUrl"`
	Company           Company      `json:"company"`
	Media             Media        `json:"media"`
	MicrosoftProducts []ProductRef `json:"microsoftProducts"`
	ExtractedAt       time.Time    `json:"extractedAt"`
}

// RunMetadata summarizes one extraction run. TotalPages counts pages
// actually visited, not a target count.
type RunMetadata struct {
	TotalPages     int         `json:"totalPages"`
	TotalStories   int         `json:"totalStories"`
	ExtractionDate string      `json:"extractionDate"`
	BaseUrl        string      `json:"baseUrl"`
	StoriesPerPage map[int]int `json:"storiesPerPage"`
}

// Dataset is the persisted output schema.
type Dataset struct {
	Metadata RunMetadata   `json:"metadata"`
	Stories  []StoryRecord `json:"stories"`
}

// GlobalId derives the stable per-run record key from the 1-based page
// index and 1-based position within the page.
func GlobalId(page, position int) string {
	return fmt.Sprintf("p%d_%d", page, position)
}

// SanitizeProductName lowercases a product name and replaces every
// non-alphanumeric rune with an underscore, producing a filename-safe
// role suffix.
func SanitizeProductName(name string) string {
	out := strings.Builder{}
	for _, c := range strings.ToLower(name) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			out.WriteRune(c)
			continue
		}
		out.WriteByte('_')
	}
	return out.String()
}

const (
	RoleLogo   = "logo"
	RoleHeader = "header"
)

// ProductRole returns the asset role tag for a product icon.
func ProductRole(name string) string {
	return "product_" + SanitizeProductName(name)
}

// AssetBase derives the extensionless local filename for an asset. The
// derivation is deterministic: the same globalId and role always
// produce the same base.
func AssetBase(globalId, role string) string {
	return fmt.Sprintf("%s_%s", globalId, role)
}

// AssetName is AssetBase with the derived extension attached.
func AssetName(globalId, role, ext string) string {
	return fmt.Sprintf("%s.%s", AssetBase(globalId, role), ext)
}
