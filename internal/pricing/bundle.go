package pricing

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BundleTier grants Percent off once a cart holds at least MinItems distinct services.
type BundleTier struct {
	MinItems int `json:"minItems" yaml:"minItems" validate:"gte=1"`
	Percent  int `json:"percent" yaml:"percent" validate:"gte=0,lte=100"`
}

// BundleSchedule is a list of bundle tiers ordered by MinItems ascending.
type BundleSchedule []BundleTier

// DefaultBundleSchedule is the agency's standard multi-service discount.
var DefaultBundleSchedule = BundleSchedule{
	{MinItems: 3, Percent: 10},
	{MinItems: 5, Percent: 15},
	{MinItems: 7, Percent: 20},
}

// Percentage returns the discount percentage for the given distinct item count.
// Boundary counts take the higher tier.
func (s BundleSchedule) Percentage(count int) int {
	pct := 0
	for _, tier := range s {
		if count >= tier.MinItems {
			pct = tier.Percent
			continue
		}
		break
	}
	return pct
}

// Normalize returns a copy sorted by MinItems.
func (s BundleSchedule) Normalize() BundleSchedule {
	out := append(BundleSchedule(nil), s...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinItems < out[j].MinItems })
	return out
}

// String renders the schedule in the "min:pct,min:pct" config form.
func (s BundleSchedule) String() string {
	parts := make([]string, 0, len(s))
	for _, tier := range s {
		parts = append(parts, fmt.Sprintf("%d:%d", tier.MinItems, tier.Percent))
	}
	return strings.Join(parts, ",")
}

// ParseBundleSchedule reads a schedule such as "3:10,5:15,7:20". An empty value yields
// DefaultBundleSchedule.
func ParseBundleSchedule(value string) (BundleSchedule, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultBundleSchedule.Normalize(), nil
	}
	parts := strings.Split(value, ",")
	schedule := make(BundleSchedule, 0, len(parts))
	seen := make(map[int]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		minRaw, pctRaw, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("bundle tier %q: expected min:percent", part)
		}
		minItems, err := strconv.Atoi(strings.TrimSpace(minRaw))
		if err != nil || minItems < 1 {
			return nil, fmt.Errorf("bundle tier %q: invalid item threshold", part)
		}
		pct, err := strconv.Atoi(strings.TrimSpace(pctRaw))
		if err != nil || pct < 0 || pct > 100 {
			return nil, fmt.Errorf("bundle tier %q: invalid percent", part)
		}
		if _, dup := seen[minItems]; dup {
			return nil, fmt.Errorf("bundle tier %q: duplicate threshold", part)
		}
		seen[minItems] = struct{}{}
		schedule = append(schedule, BundleTier{MinItems: minItems, Percent: pct})
	}
	return schedule.Normalize(), nil
}
