package tracker

import (
	"fmt"
	"sort"
	"strconv"

	"agriquest/models"
)

// Verified step identifiers.
const (
	VerifyPestImageUploaded = "pest:imageUploaded"
	VerifyPestImageAnalyzed = "pest:imageAnalyzed"
	VerifyWeatherViewed     = "weather:viewed"
	VerifyMarketFetched     = "market:fetched"
	VerifyFeedbackSubmitted = "feedback:submitted"
	VerifyCommunityPosted   = "community:posted"
)

// Rule maps an event kind (optionally narrowed by a predicate over the event
// data) to a verified step id. Several rules may share an id.
type Rule struct {
	ID    string
	Kind  models.EventKind
	Match func(data map[string]any) bool
}

// RuleSet is a declarative mapping table from event kinds to step ids.
type RuleSet []Rule

// DefaultRules is the table the app ships with.
var DefaultRules = RuleSet{
	{ID: VerifyPestImageUploaded, Kind: models.EventPestUpload},
	{ID: VerifyPestImageUploaded, Kind: models.EventPestDetectionAttempt},
	{ID: VerifyPestImageAnalyzed, Kind: models.EventPestDetectionSuccess},
	{ID: VerifyWeatherViewed, Kind: models.EventWeatherView},
	{ID: VerifyMarketFetched, Kind: models.EventMarketLiveFetch, Match: nonEmptyFetch},
	{ID: VerifyFeedbackSubmitted, Kind: models.EventFeedbackSubmit},
	{ID: VerifyCommunityPosted, Kind: models.EventCommunityPost},
}

// StepVerifications maps questID → step index → verified step id.
type StepVerifications map[string]map[int]string

// DefaultStepVerifications ties catalog steps to DefaultRules ids.
var DefaultStepVerifications = StepVerifications{
	"pest-scout":      {0: VerifyPestImageUploaded, 1: VerifyPestImageAnalyzed},
	"weather-prep":    {0: VerifyWeatherViewed},
	"market-check":    {0: VerifyMarketFetched},
	"feedback-app":    {1: VerifyFeedbackSubmitted},
	"community-share": {0: VerifyCommunityPosted},
}

// Validate checks that every rule has an id and names a known event kind,
// and that no id is bound to the same kind twice. An id may be reached from
// several kinds.
func (rs RuleSet) Validate() error {
	type binding struct {
		id   string
		kind models.EventKind
	}
	seen := make(map[binding]int, len(rs))
	for i, r := range rs {
		if r.ID == "" {
			return fmt.Errorf("rule %d: empty id", i)
		}
		if !r.Kind.Known() {
			return fmt.Errorf("rule %d (%s): unknown event kind %q", i, r.ID, r.Kind)
		}
		key := binding{r.ID, r.Kind}
		if j, dup := seen[key]; dup {
			return fmt.Errorf("rule %d (%s): duplicates rule %d for kind %q", i, r.ID, j, r.Kind)
		}
		seen[key] = i
	}
	return nil
}

func (rs RuleSet) byKind() map[models.EventKind][]Rule {
	table := make(map[models.EventKind][]Rule, len(rs))
	for _, r := range rs {
		table[r.Kind] = append(table[r.Kind], r)
	}
	return table
}

// VerifiedSet is a set of verified step ids.
type VerifiedSet map[string]struct{}

// Has reports membership.
func (v VerifiedSet) Has(id string) bool {
	_, ok := v[id]
	return ok
}

// Sorted returns the ids in lexical order.
func (v VerifiedSet) Sorted() []string {
	out := make([]string, 0, len(v))
	for id := range v {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ComputeVerifiedSet returns the ids of every rule satisfied by at least one
// event. It is pure: the result depends only on events and rules, and adding
// events can only grow it. A predicate that panics counts as a non-match for
// that event.
func ComputeVerifiedSet(events []models.Event, rules RuleSet) VerifiedSet {
	table := rules.byKind()
	verified := make(VerifiedSet)
	for _, evt := range events {
		for _, r := range table[evt.Type] {
			if verified.Has(r.ID) {
				continue
			}
			if matches(r, evt) {
				verified[r.ID] = struct{}{}
			}
		}
	}
	return verified
}

func matches(r Rule, evt models.Event) (ok bool) {
	if r.Match == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return r.Match(evt.Data)
}

// nonEmptyFetch rejects market fetches that explicitly returned no rows.
func nonEmptyFetch(data map[string]any) bool {
	n, ok := numberField(data, "len")
	return !ok || n > 0
}

// numberField reads a numeric field that may have round-tripped through JSON
// (float64) or been recorded from CLI input (string).
func numberField(data map[string]any, key string) (float64, bool) {
	switch v := data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}
