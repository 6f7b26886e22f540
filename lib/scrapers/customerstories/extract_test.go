package customerstories

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func parseFixture(t *testing.T, markup string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

const listingFixture = `
<html><body>
<div class="search-results">
	<div class="story-card">
		<h3 class="story-card__title">Contoso modernizes retail</h3>
		<a class="story-card__link" href="/story/contoso-retail"></a>
		<p class="story-card__industry">Industry: Retail</p>
		<img class="story-card__logo" src="https://cdn.example.com/contoso-logo.png">
		<img class="story-card__header" src="https://cdn.example.com/contoso-header.jpg" alt="Contoso storefront">
		<div class="story-card__product">
			<img class="story-card__product-icon" src="https://cdn.example.com/azure.svg" alt="Azure icon">
			<span class="story-card__product-name">Azure</span>
		</div>
		<div class="story-card__product">
			<span class="story-card__product-name">Azure</span>
		</div>
		<div class="story-card__product">
			<span class="story-card__product-name"></span>
		</div>
	</div>
	<div class="story-card">
		<h3 class="story-card__title">Promo card without a story link</h3>
	</div>
	<div class="story-card">
		<a class="story-card__link" href="https://example.com/story/fabrikam">Fabrikam ships faster</a>
	</div>
</div>
</body></html>`

func TestExtract(t *testing.T) {
	doc := parseFixture(t, listingFixture)
	extractor := NewExtractor(DefaultSelectors())

	records := extractor.Extract(context.Background(), doc, 2)
	require.Len(t, records, 2)

	first := records[0]
	require.Equal(t, 2, first.Page)
	require.Equal(t, 1, first.PositionOnPage)
	require.Equal(t, "p2_1", first.GlobalId)
	require.Equal(t, "Contoso modernizes retail", first.Title)
	require.Equal(t, "Retail", first.Industry)
	require.Equal(t, "/story/contoso-retail", first.StoryUrl)
	require.Equal(t, "https://cdn.example.com/contoso-logo.png", first.Company.Logo)
	require.Equal(t, "https://cdn.example.com/contoso-header.jpg", first.Media.HeaderImage)
	require.Equal(t, "Contoso storefront", first.Media.HeaderImageAlt)
	require.False(t, first.ExtractedAt.IsZero())

	// duplicate product names are listed independently, empty names dropped
	diff := cmp.Diff([]ProductRef{
		{Name: "Azure", Icon: "https://cdn.example.com/azure.svg", IconAlt: "Azure icon"},
		{Name: "Azure"},
	}, first.MicrosoftProducts)
	if diff != "" {
		t.Fatal(diff)
	}

	// the link-only card falls back to anchor text for its title
	second := records[1]
	require.Equal(t, "p2_2", second.GlobalId)
	require.Equal(t, "Fabrikam ships faster", second.Title)
	require.Equal(t, "https://example.com/story/fabrikam", second.StoryUrl)
	require.Empty(t, second.Industry)
	require.Empty(t, second.MicrosoftProducts)
}

func TestExtractEmptyPage(t *testing.T) {
	doc := parseFixture(t, `<html><body><div class="search-results"></div></body></html>`)
	extractor := NewExtractor(DefaultSelectors())

	require.Equal(t, 0, extractor.CardCount(doc))
	require.Empty(t, extractor.Extract(context.Background(), doc, 1))
}

func TestSanitizeProductName(t *testing.T) {
	testCases := []struct {
		name     string
		expected string
	}{
		{name: "Azure", expected: "azure"},
		{name: "Microsoft 365", expected: "microsoft_365"},
		{name: "Dynamics 365 + Power BI", expected: "dynamics_365___power_bi"},
		{name: "Teams!", expected: "teams_"},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, SanitizeProductName(test.name))
	}
}

func TestAssetNameDeterminism(t *testing.T) {
	require.Equal(t, "p3_2_logo.png", AssetName(GlobalId(3, 2), RoleLogo, "png"))
	require.Equal(t,
		AssetName("p1_1", ProductRole("Power BI"), "svg"),
		AssetName("p1_1", ProductRole("Power BI"), "svg"),
	)
	require.Equal(t, "p1_1_product_power_bi.svg", AssetName("p1_1", ProductRole("Power BI"), "svg"))
}

func TestPageURL(t *testing.T) {
	seed := "https://stories.example.com/search?q=retail"

	testCases := []struct {
		page     int
		expected string
	}{
		{page: 1, expected: seed},
		{page: 2, expected: "https://stories.example.com/search?page=2&q=retail"},
		{page: 10, expected: "https://stories.example.com/search?page=10&q=retail"},
	}

	for _, test := range testCases {
		got, err := PageURL(seed, test.page)
		require.NoError(t, err)
		require.Equal(t, test.expected, got)
	}
}
