package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

// SidebarDateLayout is the day/month/year stamp closing the feed description.
const SidebarDateLayout = "02/01/2006"

// StampDescription replaces the trailing date stamp of desc with now's date.
// Descriptions shorter than a stamp are replaced entirely.
func StampDescription(desc string, now time.Time) string {
	runes := []rune(desc)
	keep := max(len(runes)-len(SidebarDateLayout), 0)
	return string(runes[:keep]) + now.Format(SidebarDateLayout)
}

// UpdateSidebar refreshes the "last updated" stamp of the feed description.
// Failures are logged and never returned.
func UpdateSidebar(ctx context.Context, publisher feed.Publisher, clock feed.Clock, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	desc, err := publisher.Description(ctx)
	if err != nil {
		logger.Warn("read feed description failed", zap.Error(err))
		return
	}
	updated := StampDescription(desc, clock.Now())
	if err := publisher.SetDescription(ctx, updated); err != nil {
		logger.Warn("update feed description failed", zap.Error(err))
		return
	}
	logger.Info("feed description updated", zap.String("description", updated))
}
