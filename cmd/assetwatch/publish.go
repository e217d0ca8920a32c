package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/assetwatch/internal/metrics"
	"github.com/jgoulah/assetwatch/internal/publisher"
	"github.com/jgoulah/assetwatch/pkg/models"
)

var (
	publishFilters filterFlags
	publishAll     bool
	publishLimit   int
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish status rows to MQTT and Home Assistant",
	Long: `Evaluates the stored event log and publishes every row whose status changed
since the last run as a retained MQTT message. The Home Assistant sensor is
updated with the number of rows needing service.`,
	RunE: runPublish,
}

func init() {
	publishFilters.register(publishCmd)
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all rows (ignore previously published statuses)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of rows to publish (0 = no limit)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	filter, err := publishFilters.filter()
	if err != nil {
		return err
	}
	m := metrics.New()
	s, err := openSession(ctx, m)
	if err != nil {
		return err
	}
	defer s.Close()

	if !s.cfg.MQTT.Enabled && !s.cfg.HomeAssistant.Enabled {
		return fmt.Errorf("neither MQTT nor Home Assistant is enabled in config")
	}
	pub, err := publisher.New(s.cfg.MQTT, s.cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	rows, err := s.engine.Evaluate(s.events, filter)
	if err != nil {
		return explain(err)
	}
	evaluationID := uuid.NewString()
	evaluatedAt := time.Now().UTC()
	s.log.Info("evaluated event log", zap.String("evaluation_id", evaluationID), zap.Int("rows", len(rows)))

	if pub.MQTTEnabled() {
		published, err := publishRows(ctx, s.db, pub, rows, rowBatch{
			evaluationID: evaluationID,
			evaluatedAt:  evaluatedAt,
			all:          publishAll,
			limit:        publishLimit,
		})
		m.AddPublished("mqtt", published)
		if err != nil {
			return err
		}
	}

	if pub.HomeAssistantEnabled() {
		fmt.Printf("Updating %s... ", s.cfg.HomeAssistant.EntityID)
		if err := pub.PublishSummary(ctx, publisher.SummaryState(rows, evaluationID, evaluatedAt)); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			return fmt.Errorf("updating Home Assistant: %w", err)
		}
		m.AddPublished("home_assistant", 1)
		fmt.Printf("✓\n")
	}

	s.log.Info("publish finished", zap.String("evaluation_id", evaluationID), zap.Strings("metrics", publishedCounts(m)))
	return nil
}

// rowSink delivers one status row
type rowSink interface {
	PublishRow(row models.AssetStatusRow, evaluationID string, evaluatedAt time.Time) error
}

// publicationStore remembers the last status published per row
type publicationStore interface {
	PublishedStatuses(ctx context.Context) (map[string]models.Status, error)
	MarkPublished(ctx context.Context, row models.AssetStatusRow) error
}

type rowBatch struct {
	evaluationID string
	evaluatedAt  time.Time
	all          bool // ignore previously published statuses
	limit        int  // 0 = no limit
}

// publishRows sends the rows whose status changed and returns how many were delivered
func publishRows(ctx context.Context, store publicationStore, sink rowSink, rows []models.AssetStatusRow, b rowBatch) (int, error) {
	pending := rows
	if !b.all {
		last, err := store.PublishedStatuses(ctx)
		if err != nil {
			return 0, fmt.Errorf("loading published statuses: %w", err)
		}
		pending = publisher.Changed(rows, last)
	}
	if len(pending) == 0 {
		fmt.Println("No status changes to publish")
		return 0, nil
	}

	if b.limit > 0 && len(pending) > b.limit {
		pending = pending[:b.limit]
		fmt.Printf("Limiting to %d rows (--limit flag)\n", b.limit)
	}

	fmt.Printf("Publishing %d rows...\n", len(pending))
	published := 0
	for i, row := range pending {
		label := row.AssetCode
		if row.ProductID != "" {
			label += "/" + row.ProductID
		}
		fmt.Printf("[%d/%d] Publishing %s (%s)... ", i+1, len(pending), label, statusText(row.Status, 0))
		if err := sink.PublishRow(row, b.evaluationID, b.evaluatedAt); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			continue
		}

		if err := store.MarkPublished(ctx, row); err != nil {
			fmt.Printf("✓ (warning: failed to mark as published: %v)\n", err)
		} else {
			fmt.Printf("✓\n")
		}
		published++
	}

	fmt.Printf("Successfully published %d/%d rows\n", published, len(pending))
	return published, nil
}

// publishedCounts renders the per-sink publish counters for the run log
func publishedCounts(m *metrics.Metrics) []string {
	families, err := m.Registry().Gather()
	if err != nil {
		return nil
	}
	var out []string
	for _, f := range families {
		if f.GetName() != "assetwatch_published_rows_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				out = append(out, fmt.Sprintf("%s=%g", label.GetValue(), metric.GetCounter().GetValue()))
			}
		}
	}
	return out
}
