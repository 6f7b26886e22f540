package customerstories

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"casevault-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("scrapers/customerstories")

// Selectors pins the markup contract of the story listing page. Tests
// swap in fixture documents built against the same contract.
type Selectors struct {
	Card        string
	Title       string
	StoryLink   string
	Industry    string
	Logo        string
	HeaderImage string
	Product     string
	ProductName string
	ProductIcon string
}

func DefaultSelectors() Selectors {
	return Selectors{
		Card:        "div.story-card",
		Title:       ".story-card__title",
		StoryLink:   "a.story-card__link",
		Industry:    ".story-card__industry",
		Logo:        "img.story-card__logo",
		HeaderImage: "img.story-card__header",
		Product:     ".story-card__product",
		ProductName: ".story-card__product-name",
		ProductIcon: "img.story-card__product-icon",
	}
}

const industryLabelPrefix = "Industry:"

type Extractor struct {
	Selectors Selectors
}

func NewExtractor(selectors Selectors) Extractor {
	return Extractor{Selectors: selectors}
}

// CardCount reports how many candidate cards the page renders,
// regardless of whether they carry story semantics.
func (e Extractor) CardCount(doc *goquery.Document) int {
	return doc.Find(e.Selectors.Card).Length()
}

// Extract walks the rendered listing page in document order and returns
// the valid story records found on it. Candidates without a resolvable
// title and story link are silently skipped; a failure local to one
// candidate never aborts the rest of the page.
func (e Extractor) Extract(ctx context.Context, doc *goquery.Document, page int) []StoryRecord {
	ctx, span := tracer.Start(ctx, "extractor:Extract")
	defer span.End()
	span.SetAttributes(attribute.Int("page", page))

	var records []StoryRecord
	doc.Find(e.Selectors.Card).Each(func(idx int, card *goquery.Selection) {
		record, ok := e.extractCard(ctx, card, page, len(records)+1)
		if !ok {
			return
		}
		records = append(records, record)
	})

	span.SetAttributes(attribute.Int("records", len(records)))
	return records
}

func (e Extractor) extractCard(ctx context.Context, card *goquery.Selection, page, position int) (record StoryRecord, ok bool) {
	// promotional cards share the card class but lack story semantics,
	// and the occasional malformed one must not take the page down with it
	defer func() {
		if r := recover(); r != nil {
			slog.WarnContext(ctx, "skipping malformed story card",
				"page", page, "position", position, "panic", fmt.Sprint(r))
			ok = false
		}
	}()

	title := htmlutil.SelectionText(card.Find(e.Selectors.Title).First())
	storyUrl := ""
	if anchors := htmlutil.GetAnchors(ctx, card.Find(e.Selectors.StoryLink).First()); len(anchors) > 0 {
		storyUrl = strings.TrimSpace(anchors[0].Href)
		if title == "" {
			title = anchors[0].Name
		}
	}
	if title == "" || storyUrl == "" {
		slog.DebugContext(ctx, "skipping card without story semantics",
			"page", page, "position", position)
		return StoryRecord{}, false
	}

	industry := htmlutil.SelectionText(card.Find(e.Selectors.Industry).First())
	industry = strings.TrimSpace(strings.TrimPrefix(industry, industryLabelPrefix))

	logo := card.Find(e.Selectors.Logo).First()
	header := card.Find(e.Selectors.HeaderImage).First()

	record = StoryRecord{
		Page:           page,
		PositionOnPage: position,
		GlobalId:       GlobalId(page, position),
		Title:          title,
		Industry:       industry,
		StoryUrl:       storyUrl,
		Company: Company{
			Logo: strings.TrimSpace(logo.AttrOr("src", "")),
		},
		Media: Media{
			HeaderImage:    strings.TrimSpace(header.AttrOr("src", "")),
			HeaderImageAlt: htmlutil.CleanText(header.AttrOr("alt", "")),
		},
		MicrosoftProducts: e.extractProducts(card),
		ExtractedAt:       time.Now().UTC(),
	}
	return record, true
}

// extractProducts lists every product reference on the card, in document
// order. Duplicate names are kept as-is: each card lists its products
// independently.
func (e Extractor) extractProducts(card *goquery.Selection) []ProductRef {
	var products []ProductRef
	card.Find(e.Selectors.Product).Each(func(_ int, sel *goquery.Selection) {
		name := htmlutil.SelectionText(sel.Find(e.Selectors.ProductName).First())
		if name == "" {
			return
		}
		icon := sel.Find(e.Selectors.ProductIcon).First()
		products = append(products, ProductRef{
			Name:    name,
			Icon:    strings.TrimSpace(icon.AttrOr("src", "")),
			IconAlt: htmlutil.CleanText(icon.AttrOr("alt", "")),
		})
	})
	return products
}

// PageURL derives the listing URL for a page: page 1 is the seed URL
// verbatim, later pages append a page query parameter.
func PageURL(seed string, page int) (string, error) {
	if page <= 1 {
		return seed, nil
	}
	u, err := url.Parse(seed)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
