package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/reelcrate/reelcrate/internal/models"
	"github.com/reelcrate/reelcrate/pkg/tool"
	"github.com/reelcrate/reelcrate/pkg/types"
)

type StatisticType string

const (
	// Per-plan subscriber counts
	StatisticTypeTotalPlanCount StatisticType = "total_plan_count"
	StatisticTypeDailyPlanCount StatisticType = "daily_plan_count"

	// Subscription row creation
	StatisticTypeDailyNewSubscriptionCount StatisticType = "daily_new_subscription_count"
)

type PlanStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type PlanStatisticRequest struct {
	Filters   []*types.CommonFilter    `json:"filters"`
	DataItems []*PlanStatisticDataItem `json:"data_items"`
}

// Build composes a WHERE clause from the request filters.
func (f *PlanStatisticRequest) Build(builder clause.Builder) {
	if f == nil || len(f.Filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, filter := range f.Filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		filter.Build(builder)
	}
}

type PlanStatisticResponseDataItem struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type PlanStatisticResponse struct {
	DataItems map[StatisticType][]PlanStatisticResponseDataItem `json:"data_items"`
}

// Service provides statistics operations
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

// SaveSubscriptionDailySnapshot persists a daily snapshot of a user's current
// subscription state. One snapshot is kept per user and day; re-running for
// the same day overwrites.
func (s *Service) SaveSubscriptionDailySnapshot(ctx context.Context, subscription *models.Subscription, snapshotDate time.Time) error {
	if subscription == nil {
		return fmt.Errorf("nil subscription")
	}
	snap := &models.SubscriptionDailySnapshot{
		ID:                     tool.GenerateUUIDV7(),
		UserID:                 subscription.UserID,
		ProviderSubscriptionID: subscription.ProviderSubscriptionID,
		Plan:                   subscription.Plan,
		PendingPlan:            subscription.PendingPlan,
		Status:                 subscription.Status,
		CurrentPeriodEnd:       subscription.CurrentPeriodEnd,
		SnapshotDate:           snapshotDate.Format(time.DateOnly),
		SnapshotCreatedAt:      time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider_subscription_id", "plan", "pending_plan", "status",
			"current_period_end", "snapshot_created_at",
		}),
	}).Create(snap).Error
}

// Internal helpers for the supported statistic types
func (s *Service) getTotalPlanCount(ctx context.Context, request *PlanStatisticRequest) ([]PlanStatisticResponseDataItem, error) {
	var results []PlanStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table("subscription").
		Select("plan AS label, count(*) as value").
		Where("is_current").
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("plan").
		Order("plan")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyPlanCount(ctx context.Context, request *PlanStatisticRequest) ([]PlanStatisticResponseDataItem, error) {
	var results []PlanStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table("subscription_daily_snapshot").
		Select("snapshot_date as date, plan AS label, count(*) as value").
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("snapshot_date").
		Group("plan").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyNewSubscriptionCount(ctx context.Context, request *PlanStatisticRequest) ([]PlanStatisticResponseDataItem, error) {
	var results []PlanStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table("subscription").
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, count(*) as value").
		Where(clause.Where{Exprs: []clause.Expression{request}}).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getPlanStatistic(ctx context.Context, request *PlanStatisticRequest, dataItem *PlanStatisticDataItem) ([]PlanStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeTotalPlanCount:
		return s.getTotalPlanCount(ctx, request)
	case StatisticTypeDailyPlanCount:
		return s.getDailyPlanCount(ctx, request)
	case StatisticTypeDailyNewSubscriptionCount:
		return s.getDailyNewSubscriptionCount(ctx, request)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

// GetPlanStatistics evaluates the requested data items concurrently.
func (s *Service) GetPlanStatistics(ctx context.Context, request *PlanStatisticRequest) (*PlanStatisticResponse, error) {
	var wg sync.WaitGroup
	errChan := make(chan error, len(request.DataItems))
	resChan := make(chan *lo.Entry[StatisticType, []PlanStatisticResponseDataItem], len(request.DataItems))

	for _, item := range request.DataItems {
		wg.Add(1)
		go func(di *PlanStatisticDataItem) {
			defer wg.Done()
			res, err := s.getPlanStatistic(ctx, request, di)
			if err != nil {
				errChan <- err
				return
			}
			resChan <- &lo.Entry[StatisticType, []PlanStatisticResponseDataItem]{Key: di.ID, Value: res}
		}(item)
	}

	go func() { wg.Wait(); close(errChan); close(resChan) }()

	// drain the result channel fully before checking for errors; a select
	// over both channels could take nil receives from the closed error
	// channel and drop completed data items
	results := make(map[StatisticType][]PlanStatisticResponseDataItem)
	for entry := range resChan {
		results[entry.Key] = entry.Value
	}
	if err := <-errChan; err != nil {
		return nil, err
	}
	return &PlanStatisticResponse{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
