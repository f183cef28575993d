package inventory

import (
	"cmp"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dukerupert/larder/internal/model"
)

// Tier is an urgency class; lower is more urgent.
type Tier int

const (
	TierCritical Tier = iota // out of stock or already expired
	TierExpiring             // expires within the urgent window
	TierLowStock             // at or below its threshold
	TierNormal
)

// DefaultUrgentWindow is how far ahead an expiry counts as urgent.
const DefaultUrgentWindow = 7 * 24 * time.Hour

type SectionKind string

const (
	SectionPending  SectionKind = "pending"
	SectionUrgent   SectionKind = "urgent"
	SectionCategory SectionKind = "category"
)

const (
	PendingTitle = "Pending Setup"
	UrgentTitle  = "⚠ Urgent / Low Stock"
)

const annotationDate = "2006-01-02"

type Section struct {
	Title string      `json:"title"`
	Kind  SectionKind `json:"kind"`
	Items []Item      `json:"items"`
}

// Item is one display row. For active stock Batch is a copy of the group's
// representative with Quantity replaced by the group total; stored notes are
// left untouched and the computed text goes to Annotation.
type Item struct {
	Batch      model.Batch `json:"batch"`
	BatchCount int         `json:"batch_count"`
	Tier       Tier        `json:"tier"`
	Annotation string      `json:"annotation,omitempty"`
	ExpiresIn  string      `json:"expires_in,omitempty"`
}

// Aggregator groups batches into display sections.
type Aggregator struct {
	UrgentWindow time.Duration
}

// Aggregate runs the default Aggregator.
func Aggregate(batches []model.Batch, now time.Time) []Section {
	return Aggregator{UrgentWindow: DefaultUrgentWindow}.Aggregate(batches, now)
}

// Aggregate is pure: the result depends only on batches and now.
func (a Aggregator) Aggregate(batches []model.Batch, now time.Time) []Section {
	var pending, active []model.Batch
	for _, b := range batches {
		if b.PendingSetup {
			pending = append(pending, b)
		} else {
			active = append(active, b)
		}
	}

	var sections []Section
	if len(pending) > 0 {
		sections = append(sections, Section{Title: PendingTitle, Kind: SectionPending, Items: a.pendingItems(pending, now)})
	}

	items := a.collapse(active, now)
	slices.SortStableFunc(items, compareItems)

	var urgent []Item
	rest := items
	for len(rest) > 0 && rest[0].Tier < TierNormal {
		urgent = append(urgent, rest[0])
		rest = rest[1:]
	}
	if len(urgent) > 0 {
		sections = append(sections, Section{Title: UrgentTitle, Kind: SectionUrgent, Items: urgent})
	}
	for _, it := range rest {
		cat := categoryOf(it.Batch)
		if n := len(sections); n > 0 && sections[n-1].Kind == SectionCategory && sections[n-1].Title == cat {
			sections[n-1].Items = append(sections[n-1].Items, it)
			continue
		}
		sections = append(sections, Section{Title: cat, Kind: SectionCategory, Items: []Item{it}})
	}
	return sections
}

// pendingItems lists pending batches newest first, one row each.
func (a Aggregator) pendingItems(pending []model.Batch, now time.Time) []Item {
	ordered := slices.Clone(pending)
	slices.Reverse(ordered)
	slices.SortStableFunc(ordered, func(x, y model.Batch) int {
		return y.CreatedAt.Compare(x.CreatedAt)
	})

	items := make([]Item, len(ordered))
	for i, b := range ordered {
		items[i] = Item{
			Batch:      b,
			BatchCount: 1,
			Tier:       a.Classify(b.Quantity, b.ExpiresAt, thresholdOf(b), now),
			ExpiresIn:  expiresIn(b, now),
		}
	}
	return items
}

func (a Aggregator) collapse(active []model.Batch, now time.Time) []Item {
	type group struct {
		batches []model.Batch
	}
	var order []model.GroupKey
	groups := make(map[model.GroupKey]*group)
	for _, b := range active {
		k := b.Key()
		g, ok := groups[k]
		if !ok {
			g = &group{}
			groups[k] = g
			order = append(order, k)
		}
		g.batches = append(g.batches, b)
	}

	items := make([]Item, 0, len(order))
	for _, k := range order {
		g := groups[k]
		total, threshold, _ := summarize(g.batches)

		rep := representative(g.batches)
		rep.Quantity = total
		if threshold > 0 {
			th := threshold
			rep.MinThreshold = &th
		}
		if rep.Category == "" {
			rep.Category = model.DefaultCategory
		}

		it := Item{
			Batch:      rep,
			BatchCount: len(g.batches),
			Tier:       a.Classify(total, rep.ExpiresAt, threshold, now),
			ExpiresIn:  expiresIn(rep, now),
		}
		if it.BatchCount > 1 && rep.HasExpiry() {
			it.Annotation = "Closest Expiry: " + rep.ExpiresAt.Format(annotationDate)
		}
		items = append(items, it)
	}
	return items
}

// Classify places a quantity/expiry/threshold triple in exactly one tier.
// A threshold of 0 means none is set.
func (a Aggregator) Classify(quantity int, expiresAt *time.Time, threshold int, now time.Time) Tier {
	hasExpiry := expiresAt != nil && expiresAt.Unix() > 0
	switch {
	case quantity <= 0, hasExpiry && expiresAt.Before(now):
		return TierCritical
	case hasExpiry && !expiresAt.After(now.Add(a.UrgentWindow)):
		return TierExpiring
	case threshold > 0 && quantity <= threshold:
		return TierLowStock
	default:
		return TierNormal
	}
}

// representative picks the batch with the soonest expiry, else the first one.
func representative(batches []model.Batch) model.Batch {
	best := batches[0]
	for _, b := range batches[1:] {
		if !b.HasExpiry() {
			continue
		}
		if !best.HasExpiry() || b.ExpiresAt.Before(*best.ExpiresAt) {
			best = b
		}
	}
	return best
}

func compareItems(x, y Item) int {
	return cmp.Or(
		cmp.Compare(x.Tier, y.Tier),
		cmp.Compare(categoryOf(x.Batch), categoryOf(y.Batch)),
		cmp.Compare(model.NormalizeName(x.Batch.Name), model.NormalizeName(y.Batch.Name)),
		cmp.Compare(x.Batch.Name, y.Batch.Name),
		cmp.Compare(x.Batch.OwnerID, y.Batch.OwnerID),
	)
}

func categoryOf(b model.Batch) string {
	if b.Category == "" {
		return model.DefaultCategory
	}
	return b.Category
}

func thresholdOf(b model.Batch) int {
	th, _ := b.Threshold()
	return th
}

func expiresIn(b model.Batch, now time.Time) string {
	if !b.HasExpiry() {
		return ""
	}
	return humanize.RelTime(*b.ExpiresAt, now, "ago", "from now")
}

// summarize returns the group total, its first positive threshold (0 if none)
// and its first non-blank unit.
func summarize(batches []model.Batch) (total, threshold int, unit string) {
	for _, b := range batches {
		total += b.Quantity
		if th, ok := b.Threshold(); ok && threshold == 0 {
			threshold = th
		}
		if unit == "" && b.Unit != "" {
			unit = b.Unit
		}
	}
	return total, threshold, unit
}
