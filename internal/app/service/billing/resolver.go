package billing

import (
	"sort"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/reelcrate/reelcrate/pkg/config"
	"github.com/reelcrate/reelcrate/pkg/types"
)

// metadataPlanKeys is the fixed ordered list of metadata keys consulted when
// no price maps through the static table.
var metadataPlanKeys = []string{"plan", "tier", "plan_tier"}

// resolvedPlans is the resolver output consumed by the pending-change
// calculator.
type resolvedPlans struct {
	// Current is the plan the line items resolve to, nil when unresolvable.
	Current *types.PlanTier
	// Scheduled is the plan taking effect at the next period boundary, nil
	// when there is none or when it equals Current.
	Scheduled *types.PlanTier
	// ScheduleSignal is true whenever a schedule phase or pending-update
	// payload resolved to some plan, even one equal to Current. The
	// calculator needs the signal separately from the value: an equal
	// scheduled plan is "no change" for display but still explains an
	// out-of-order downgrade.
	ScheduleSignal bool

	CurrentPriceID   string
	ScheduledPriceID string
}

// planResolver turns an expanded provider subscription into (current,
// scheduled) plan tiers. Resolution inputs overlap, so each one is a strategy
// evaluated in priority order; the first non-nil result wins.
type planResolver struct {
	cfg *config.Config
}

func newPlanResolver(cfg *config.Config) *planResolver {
	return &planResolver{cfg: cfg}
}

// itemFacts is the flattened view of one line item the strategies inspect.
type itemFacts struct {
	priceID     string
	unitAmount  int64
	itemMeta    map[string]string
	priceMeta   map[string]string
	productMeta map[string]string
	hasPrice    bool
}

type itemStrategy func(*itemFacts) *types.PlanTier

func (r *planResolver) strategies() []itemStrategy {
	return []itemStrategy{
		r.fromPriceTable,
		fromItemMetadata,
		fromPriceMetadata,
		fromProductMetadata,
		fromZeroAmount,
	}
}

func (r *planResolver) fromPriceTable(f *itemFacts) *types.PlanTier {
	if plan, ok := r.cfg.PlanForPrice(f.priceID); ok {
		return &plan
	}
	return nil
}

func fromItemMetadata(f *itemFacts) *types.PlanTier    { return planFromMetadata(f.itemMeta) }
func fromPriceMetadata(f *itemFacts) *types.PlanTier   { return planFromMetadata(f.priceMeta) }
func fromProductMetadata(f *itemFacts) *types.PlanTier { return planFromMetadata(f.productMeta) }

// fromZeroAmount treats an exactly-zero unit amount as an explicit free tier;
// this covers complimentary/comped subscriptions.
func fromZeroAmount(f *itemFacts) *types.PlanTier {
	if f.hasPrice && f.unitAmount == 0 {
		free := types.PlanTierFree
		return &free
	}
	return nil
}

func planFromMetadata(meta map[string]string) *types.PlanTier {
	if len(meta) == 0 {
		return nil
	}
	for _, key := range metadataPlanKeys {
		if v, ok := meta[key]; ok {
			if plan, ok := types.ParsePlanTier(v); ok {
				return &plan
			}
		}
	}
	return nil
}

func (r *planResolver) resolveFacts(f *itemFacts) *types.PlanTier {
	for _, strat := range r.strategies() {
		if plan := strat(f); plan != nil {
			return plan
		}
	}
	return nil
}

// Resolve produces the (current, scheduled) plans for a fully-expanded
// subscription. now anchors the "first future-dated phase" fallback.
func (r *planResolver) Resolve(sub *stripe.Subscription, now time.Time) resolvedPlans {
	var out resolvedPlans

	for _, item := range sortedItems(sub) {
		facts := factsFromItem(item)
		if plan := r.resolveFacts(facts); plan != nil {
			out.Current = plan
			out.CurrentPriceID = facts.priceID
			break
		}
	}

	out.Scheduled, out.ScheduledPriceID = r.resolveScheduled(sub, now)
	if out.Scheduled != nil {
		out.ScheduleSignal = true
		if out.Current != nil && *out.Scheduled == *out.Current {
			// same plan on both sides of the boundary is not a pending
			// transition; keep the signal, drop the value
			out.Scheduled = nil
			out.ScheduledPriceID = ""
		}
	}
	return out
}

// resolveScheduled prefers a non-empty pending-update payload over the
// schedule-derived answer.
func (r *planResolver) resolveScheduled(sub *stripe.Subscription, now time.Time) (*types.PlanTier, string) {
	if sub.PendingUpdate != nil && len(sub.PendingUpdate.SubscriptionItems) > 0 {
		for _, item := range sub.PendingUpdate.SubscriptionItems {
			if item == nil || item.Deleted || item.Quantity == 0 {
				continue
			}
			facts := factsFromItem(item)
			if plan := r.resolveFacts(facts); plan != nil {
				return plan, facts.priceID
			}
		}
	}

	phase := nextPhase(sub.Schedule, now)
	if phase == nil {
		return nil, ""
	}
	for _, item := range phase.Items {
		if item.Quantity == 0 {
			continue
		}
		facts := factsFromPhaseItem(item)
		if plan := r.resolveFacts(facts); plan != nil {
			return plan, facts.priceID
		}
	}
	return nil, ""
}

// nextPhase locates the phase following the current one: boundary equality
// against current_phase first, then the first future-dated phase, then the
// last phase.
func nextPhase(sched *stripe.SubscriptionSchedule, now time.Time) *stripe.SubscriptionSchedulePhase {
	if sched == nil || len(sched.Phases) == 0 {
		return nil
	}
	if cur := sched.CurrentPhase; cur != nil {
		for i, ph := range sched.Phases {
			if ph.StartDate == cur.StartDate && ph.EndDate == cur.EndDate {
				if i+1 < len(sched.Phases) {
					return sched.Phases[i+1]
				}
				break
			}
		}
	}
	for _, ph := range sched.Phases {
		if ph.StartDate > now.Unix() {
			return ph
		}
	}
	return sched.Phases[len(sched.Phases)-1]
}

// sortedItems returns the non-deleted, non-zero-quantity line items, most
// recently created first.
func sortedItems(sub *stripe.Subscription) []*stripe.SubscriptionItem {
	if sub == nil || sub.Items == nil {
		return nil
	}
	items := make([]*stripe.SubscriptionItem, 0, len(sub.Items.Data))
	for _, item := range sub.Items.Data {
		if item == nil || item.Deleted || item.Quantity == 0 {
			continue
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Created > items[j].Created
	})
	return items
}

// newestItem returns the line item whose price and period describe the
// subscription today.
func newestItem(sub *stripe.Subscription) *stripe.SubscriptionItem {
	items := sortedItems(sub)
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

func factsFromItem(item *stripe.SubscriptionItem) *itemFacts {
	f := &itemFacts{itemMeta: item.Metadata}
	if item.Price != nil {
		f.hasPrice = true
		f.priceID = item.Price.ID
		f.unitAmount = item.Price.UnitAmount
		f.priceMeta = item.Price.Metadata
		if item.Price.Product != nil {
			f.productMeta = item.Price.Product.Metadata
		}
	}
	return f
}

func factsFromPhaseItem(item *stripe.SubscriptionSchedulePhaseItem) *itemFacts {
	f := &itemFacts{itemMeta: item.Metadata}
	if item.Price != nil {
		f.hasPrice = true
		f.priceID = item.Price.ID
		f.unitAmount = item.Price.UnitAmount
		f.priceMeta = item.Price.Metadata
		if item.Price.Product != nil {
			f.productMeta = item.Price.Product.Metadata
		}
	}
	return f
}
