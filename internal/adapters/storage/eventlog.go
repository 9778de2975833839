package storage

import (
	"context"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/corvid-labs/harvestd/internal/core/domain"
)

// EpochEventModel is the GORM model for one epoch's outcome summary, a
// supplemental event log alongside the binary bandit-state snapshot, kept
// for historical/debugging queries the binary format doesn't serve.
type EpochEventModel struct {
	ID         uint `gorm:"primaryKey"`
	EpochNum   int  `gorm:"index"`
	Mood       string
	NumDeauths int
	NumAssocs  int
	NumShakes  int
	NumHops    int
	NumMissed  int
	DwellTime  float64
	RecordedAt time.Time `gorm:"index"`
}

// HandshakeCaptureModel logs each classified pcap, independent of the
// classifier's in-memory cache (§4.9), for durable reporting.
type HandshakeCaptureModel struct {
	ID         uint   `gorm:"primaryKey"`
	BSSID      string `gorm:"index"`
	SSID       string
	Quality    string
	PcapPath   string
	RecordedAt time.Time `gorm:"index"`
}

// CrackResultModel logs one cracker child-process outcome (§4.13).
type CrackResultModel struct {
	ID           uint `gorm:"primaryKey"`
	PcapBasename string
	WordlistPath string
	Cracked      bool
	Key          string
	RecordedAt   time.Time `gorm:"index"`
}

// EventStore is the supplemental GORM/SQLite event-log store, instrumented
// with the same OpenTelemetry tracing plugin as the teacher's SQLiteAdapter.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore opens path and migrates the event-log schema.
func NewEventStore(path string) (*EventStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&EpochEventModel{}, &HandshakeCaptureModel{}, &CrackResultModel{}); err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, err
	}
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA busy_timeout=5000;")
	return &EventStore{db: db}, nil
}

// LogEpoch appends one epoch's outcome summary.
func (s *EventStore) LogEpoch(ctx context.Context, epoch *domain.Epoch, mood domain.Mood, now time.Time) error {
	m := EpochEventModel{
		EpochNum:   epoch.Num,
		Mood:       string(mood),
		NumDeauths: epoch.Counters.NumDeauths,
		NumAssocs:  epoch.Counters.NumAssocs,
		NumShakes:  epoch.Counters.NumShakes,
		NumHops:    epoch.Counters.NumHops,
		NumMissed:  epoch.Counters.NumMissed,
		DwellTime:  epoch.DwellTime,
		RecordedAt: now,
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// LogHandshake appends one classified capture.
func (s *EventStore) LogHandshake(ctx context.Context, entry domain.HandshakeCacheEntry) error {
	m := HandshakeCaptureModel{
		BSSID:      entry.BSSID,
		SSID:       entry.SSID,
		Quality:    string(entry.Quality),
		PcapPath:   entry.PcapPath,
		RecordedAt: entry.AnalyzedAt,
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// LogCrackResult appends one dictionary-cracking outcome.
func (s *EventStore) LogCrackResult(ctx context.Context, rec domain.CrackRecord, now time.Time) error {
	m := CrackResultModel{
		PcapBasename: rec.PcapBasename,
		WordlistPath: rec.WordlistPath,
		Cracked:      rec.Cracked,
		Key:          rec.Key,
		RecordedAt:   now,
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// RecentEpochs returns the last n epoch records, most recent first, for the
// PDF session-summary report.
func (s *EventStore) RecentEpochs(ctx context.Context, n int) ([]EpochEventModel, error) {
	var rows []EpochEventModel
	err := s.db.WithContext(ctx).Order("id desc").Limit(n).Find(&rows).Error
	return rows, err
}

// Handshakes returns every logged capture, most recent first.
func (s *EventStore) Handshakes(ctx context.Context) ([]HandshakeCaptureModel, error) {
	var rows []HandshakeCaptureModel
	err := s.db.WithContext(ctx).Order("id desc").Find(&rows).Error
	return rows, err
}

func (s *EventStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
