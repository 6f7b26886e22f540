package customerstories

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"casevault-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

// Reason records which signal produced a pagination decision.
type Reason string

const (
	ReasonSinglePage   Reason = "single_page"
	ReasonAnnouncement Reason = "page_announcement"
	ReasonNextControl  Reason = "next_control"
	ReasonNoSignal     Reason = "no_signal"
)

type Decision struct {
	Continue bool
	Reason   Reason
}

// PaginationSelectors pins the markup the oracle inspects.
type PaginationSelectors struct {
	Container    string
	ShownCount   string
	TotalCount   string
	Announcement string
	NextControl  string
}

func DefaultPaginationSelectors() PaginationSelectors {
	return PaginationSelectors{
		Container:    ".pagination",
		ShownCount:   ".pagination__shown-count",
		TotalCount:   ".pagination__total-count",
		Announcement: ".pagination__announcement",
		NextControl:  ".pagination__next",
	}
}

// Signal inspects the rendered page and returns a decision, or nil when
// it cannot conclude anything.
type Signal func(doc *goquery.Document) *Decision

// Oracle decides whether another listing page should be fetched. No
// single DOM signal is trustworthy across the markup variants the site
// serves, so signals are evaluated in a fixed priority order and the
// first conclusive one wins. The orchestrator's page cap is the final
// backstop against an oracle that never says stop.
type Oracle struct {
	signals []Signal
}

func NewOracle(selectors PaginationSelectors) Oracle {
	return Oracle{
		signals: []Signal{
			hiddenPaginationSignal(selectors),
			announcementSignal(selectors),
			nextControlSignal(selectors),
		},
	}
}

// Evaluate returns the continuation decision for the page. With no
// conclusive signal at all the oracle errs on the side of continuing.
func (o Oracle) Evaluate(ctx context.Context, doc *goquery.Document) Decision {
	ctx, span := tracer.Start(ctx, "oracle:Evaluate")
	defer span.End()

	for _, signal := range o.signals {
		if decision := signal(doc); decision != nil {
			span.SetAttributes(
				attribute.Bool("continue", decision.Continue),
				attribute.String("reason", string(decision.Reason)),
			)
			return *decision
		}
	}

	decision := Decision{Continue: true, Reason: ReasonNoSignal}
	span.SetAttributes(
		attribute.Bool("continue", decision.Continue),
		attribute.String("reason", string(decision.Reason)),
	)
	return decision
}

func isHidden(sel *goquery.Selection) bool {
	if _, hidden := sel.Attr("hidden"); hidden {
		return true
	}
	if sel.AttrOr("aria-hidden", "") == "true" {
		return true
	}
	style := strings.ReplaceAll(sel.AttrOr("style", ""), " ", "")
	return strings.Contains(style, "display:none")
}

func parseCount(sel *goquery.Selection) (int, bool) {
	n, err := strconv.Atoi(htmlutil.SelectionText(sel))
	if err != nil {
		return 0, false
	}
	return n, true
}

// hiddenPaginationSignal concludes "single page" when the pagination UI
// is hidden and the shown count already equals the total count.
func hiddenPaginationSignal(selectors PaginationSelectors) Signal {
	return func(doc *goquery.Document) *Decision {
		container := doc.Find(selectors.Container).First()
		if container.Length() == 0 || !isHidden(container) {
			return nil
		}
		shown, ok := parseCount(doc.Find(selectors.ShownCount).First())
		if !ok {
			return nil
		}
		total, ok := parseCount(doc.Find(selectors.TotalCount).First())
		if !ok || total <= 0 || shown != total {
			return nil
		}
		return &Decision{Continue: false, Reason: ReasonSinglePage}
	}
}

var announcementRegex = regexp.MustCompile(`(?i)page\s+(\d+)\s+of\s+(\d+)`)

// announcementSignal parses the textual "Page X of Y" announcement.
// When it parses, it overrides every later signal.
func announcementSignal(selectors PaginationSelectors) Signal {
	return func(doc *goquery.Document) *Decision {
		text := htmlutil.SelectionText(doc.Find(selectors.Announcement).First())
		groups := announcementRegex.FindStringSubmatch(text)
		if len(groups) < 3 {
			return nil
		}
		current, err := strconv.Atoi(groups[1])
		if err != nil {
			return nil
		}
		total, err := strconv.Atoi(groups[2])
		if err != nil {
			return nil
		}
		return &Decision{Continue: current < total, Reason: ReasonAnnouncement}
	}
}

// nextControlSignal is the fallback: inspect the advance control's
// disabled state. An absent control is inconclusive, leaving the final
// say to the oracle's default and the orchestrator's page cap.
func nextControlSignal(selectors PaginationSelectors) Signal {
	return func(doc *goquery.Document) *Decision {
		control := doc.Find(selectors.NextControl).First()
		if control.Length() == 0 {
			return nil
		}
		if _, disabled := control.Attr("disabled"); disabled {
			return &Decision{Continue: false, Reason: ReasonNextControl}
		}
		if control.AttrOr("aria-disabled", "") == "true" {
			return &Decision{Continue: false, Reason: ReasonNextControl}
		}
		return &Decision{Continue: true, Reason: ReasonNextControl}
	}
}
