package customerstories

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOracle(t *testing.T) {
	oracle := NewOracle(DefaultPaginationSelectors())

	testCases := []struct {
		name     string
		markup   string
		expected Decision
	}{
		{
			name: "hidden pagination with shown equal to total",
			markup: `<div class="pagination" hidden>
				<span class="pagination__shown-count">12</span>
				<span class="pagination__total-count">12</span>
			</div>`,
			expected: Decision{Continue: false, Reason: ReasonSinglePage},
		},
		{
			name: "hidden pagination via display none",
			markup: `<div class="pagination" style="display: none">
				<span class="pagination__shown-count">12</span>
				<span class="pagination__total-count">12</span>
			</div>`,
			expected: Decision{Continue: false, Reason: ReasonSinglePage},
		},
		{
			name: "announcement mid-run",
			markup: `<div class="pagination">
				<span class="pagination__announcement">Page 2 of 5</span>
			</div>`,
			expected: Decision{Continue: true, Reason: ReasonAnnouncement},
		},
		{
			name: "announcement on last page",
			markup: `<div class="pagination">
				<span class="pagination__announcement">Page 5 of 5</span>
			</div>`,
			expected: Decision{Continue: false, Reason: ReasonAnnouncement},
		},
		{
			name: "announcement overrides inconclusive hidden signal",
			markup: `<div class="pagination" hidden>
				<span class="pagination__shown-count">12</span>
				<span class="pagination__announcement">Page 1 of 3</span>
				<button class="pagination__next" disabled></button>
			</div>`,
			expected: Decision{Continue: true, Reason: ReasonAnnouncement},
		},
		{
			name: "disabled next control fallback",
			markup: `<div class="pagination">
				<span class="pagination__announcement">showing results</span>
				<button class="pagination__next" disabled></button>
			</div>`,
			expected: Decision{Continue: false, Reason: ReasonNextControl},
		},
		{
			name: "aria-disabled next control fallback",
			markup: `<div class="pagination">
				<a class="pagination__next" aria-disabled="true"></a>
			</div>`,
			expected: Decision{Continue: false, Reason: ReasonNextControl},
		},
		{
			name: "enabled next control fallback",
			markup: `<div class="pagination">
				<button class="pagination__next"></button>
			</div>`,
			expected: Decision{Continue: true, Reason: ReasonNextControl},
		},
		{
			name: "no signal at all defers to the page cap",
			markup: `<div class="pagination">
				<span class="pagination__announcement">get in touch</span>
			</div>`,
			expected: Decision{Continue: true, Reason: ReasonNoSignal},
		},
		{
			name:     "no pagination markup at all",
			markup:   `<p>stale template</p>`,
			expected: Decision{Continue: true, Reason: ReasonNoSignal},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			doc := parseFixture(t, fmt.Sprintf("<html><body>%s</body></html>", test.markup))
			decision := oracle.Evaluate(context.Background(), doc)
			require.Equal(t, test.expected, decision)
		})
	}
}
