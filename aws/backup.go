package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/repstats/records"
)

// BackupWindowDays is how many trailing days of daily stats each snapshot holds.
const BackupWindowDays = 30

// SnapshotUploader stores a JSON document.
type SnapshotUploader interface {
	UploadSnapshot(ctx context.Context, key string, v any) (string, error)
}

type DailyStatsReader interface {
	DailyStatsBetween(ctx context.Context, representativeID, fromDate, toDate string) ([]records.DailyStats, error)
}

type RepresentativeSource interface {
	Representatives() []records.Representative
}

// Snapshot is the document written on every backup.
type Snapshot struct {
	TakenAt    time.Time            `json:"taken_at"`
	FromDate   string               `json:"from_date"`
	ToDate     string               `json:"to_date"`
	DailyStats []records.DailyStats `json:"daily_stats"`
	Failed     []string             `json:"failed_representatives,omitempty"`
}

// Backup periodically copies recent daily stats to S3.
type Backup struct {
	uploader SnapshotUploader
	store    DailyStatsReader
	reps     RepresentativeSource
	interval time.Duration
	now      func() time.Time
}

func NewBackup(uploader SnapshotUploader, store DailyStatsReader, reps RepresentativeSource, interval time.Duration) *Backup {
	return &Backup{uploader: uploader, store: store, reps: reps, interval: interval, now: time.Now}
}

// Run takes a snapshot every interval until ctx is done.
func (b *Backup) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.BackupOnce(ctx); err != nil {
				log.Error().Err(err).Msg("Error backing up daily stats")
			}
		}
	}
}

// BackupOnce uploads one snapshot and returns its object key.
func (b *Backup) BackupOnce(ctx context.Context) (string, error) {
	takenAt := b.now().UTC()
	toDate := records.DayOf(takenAt, time.UTC)
	fromDate, err := records.AddDays(toDate, -(BackupWindowDays - 1))
	if err != nil {
		return "", err
	}
	// Representatives east of UTC may already be on the next day.
	toDate, _ = records.AddDays(toDate, 1)

	snap := Snapshot{TakenAt: takenAt, FromDate: fromDate, ToDate: toDate, DailyStats: []records.DailyStats{}}
	for _, rep := range b.reps.Representatives() {
		rows, err := b.store.DailyStatsBetween(ctx, rep.ID, fromDate, toDate)
		if err != nil {
			log.Warn().Err(err).Str("representative_id", rep.ID).Msg("Skipping representative in backup")
			snap.Failed = append(snap.Failed, rep.ID)
			continue
		}
		snap.DailyStats = append(snap.DailyStats, rows...)
	}

	key := fmt.Sprintf("backups/daily_stats/%s.json", takenAt.Format("20060102T150405Z"))
	if _, err := b.uploader.UploadSnapshot(ctx, key, snap); err != nil {
		return "", err
	}

	log.Info().Str("key", key).Int("rows", len(snap.DailyStats)).Msg("Daily stats backed up")
	return key, nil
}
