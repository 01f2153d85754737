package extract

import (
	"strings"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
)

type Verdict string

const (
	VerdictAdmit   Verdict = "admit"
	VerdictSkip    Verdict = "skip"
	VerdictInherit Verdict = "inherit"
)

// SkipReason explains a skip. Skips are normal outcomes, not errors.
type SkipReason string

const (
	ReasonContextOnly  SkipReason = "context_only"
	ReasonEmpty        SkipReason = "empty"
	ReasonPromotional  SkipReason = "promotional"
	ReasonRequest      SkipReason = "request"
	ReasonHearsay      SkipReason = "hearsay"
	ReasonPastOffering SkipReason = "past_offering"
	ReasonNonFood      SkipReason = "non_food"
	ReasonNoSentiment  SkipReason = "no_positive_sentiment"
	ReasonNoLinkage    SkipReason = "no_restaurant_linkage"
	ReasonNoParent     SkipReason = "affirmation_without_parent"
	ReasonNoMentions   SkipReason = "no_mentions"
)

type AdmissionDecision struct {
	Verdict Verdict
	Reason  SkipReason
}

func skip(reason SkipReason) AdmissionDecision {
	return AdmissionDecision{Verdict: VerdictSkip, Reason: reason}
}

// Gate decides before extraction whether unit is worth extracting.
func Gate(unit common.ContentUnit, scope Scope) AdmissionDecision {
	if unit.SourceType == common.SourceTypePost && !unit.ExtractFromPost {
		return skip(ReasonContextOnly)
	}
	text := strings.TrimSpace(unit.Text)
	if text == "" {
		return skip(ReasonEmpty)
	}
	if IsAffirmation(text) {
		if unit.ParentID == "" && strings.TrimSpace(unit.ParentContextText) == "" {
			return skip(ReasonNoParent)
		}
		return AdmissionDecision{Verdict: VerdictInherit}
	}

	a := Classify(text, scope)
	switch {
	case a.Promotional:
		return skip(ReasonPromotional)
	case a.Request:
		return skip(ReasonRequest)
	case a.Hearsay && !a.FirstHand:
		return skip(ReasonHearsay)
	case a.NonCurrent:
		return skip(ReasonPastOffering)
	case len(a.Restaurants) == 0 && len(a.Foods()) == 0 && scope.ParentRestaurant == "":
		return skip(ReasonNonFood)
	case !a.Positive && !scope.ParentRequest:
		return skip(ReasonNoSentiment)
	}
	return AdmissionDecision{Verdict: VerdictAdmit}
}

// IsAffirmation reports whether text only agrees with its parent.
func IsAffirmation(text string) bool {
	t := strings.ToLower(strings.TrimSpace(quoteReplacer.Replace(text)))
	t = strings.TrimRight(t, "!. ")
	if has(affirmations, t) {
		return true
	}
	fields := strings.Fields(t)
	return strings.HasPrefix(t, "+1") && len(fields) <= 4
}

// Validate applies the post-extraction admission rules and returns the
// records that may be persisted. The reason is set when nothing survives.
func Validate(unit common.ContentUnit, scope Scope, records []common.MentionRecord) ([]common.MentionRecord, SkipReason) {
	if unit.SourceType == common.SourceTypePost && !unit.ExtractFromPost {
		return nil, ReasonContextOnly
	}
	if len(records) == 0 {
		return nil, ReasonNoMentions
	}

	if len(scope.Inherited) == 0 && !scope.ParentRequest && !anyPraise(records) {
		if a := Classify(unit.Text, scope); !a.Positive {
			return nil, ReasonNoSentiment
		}
	}

	var out []common.MentionRecord
	for _, r := range records {
		if r.Source.Type == common.SourceTypePost && !unit.ExtractFromPost {
			continue
		}
		if r.RestaurantName == "" {
			continue
		}
		if r.RestaurantOnly() && !r.GeneralPraise && len(r.RestaurantAttributes) == 0 {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, ReasonNoLinkage
	}
	return out, ""
}

func anyPraise(records []common.MentionRecord) bool {
	for _, r := range records {
		if r.GeneralPraise {
			return true
		}
	}
	return false
}
