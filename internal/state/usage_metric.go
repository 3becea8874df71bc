package state

import (
	"context"
	"time"

	"github.com/roach88/eventstate/internal/db"
)

// DefaultUsageBucketDuration is the width of a usage metric bucket unless
// configured otherwise.
const DefaultUsageBucketDuration = 5 * time.Minute

// UsageBucket counts root process instances (RPI) and executed decision
// instances (EDI) per tenant within [FromTime, ToTime).
type UsageBucket struct {
	FromTime int64            `json:"from_time"`
	ToTime   int64            `json:"to_time"`
	RPI      map[string]int64 `json:"rpi,omitempty"`
	EDI      map[string]int64 `json:"edi,omitempty"`
}

// UsageMetricState reads the open usage bucket.
type UsageMetricState interface {
	ActiveBucket(ctx context.Context) (*UsageBucket, bool, error)
}

// MutableUsageMetricState counts usage into the open bucket and resets it
// on export.
type MutableUsageMetricState interface {
	UsageMetricState

	// ResetActiveBucket starts a new empty bucket at fromTime. It does
	// nothing if the active bucket already starts there.
	ResetActiveBucket(ctx context.Context, fromTime int64) error
	RecordRPI(ctx context.Context, tenantID string) error
	RecordEDI(ctx context.Context, tenantID string) error
}

// DBUsageMetricState stores the open usage bucket under a single key.
type DBUsageMetricState struct {
	bucket   *db.ColumnFamily[*UsageBucket]
	clock    *StreamClock
	duration int64
}

// NewUsageMetricState returns the usage metric partition of d. Buckets
// are bucketDuration long and timed by clock.
func NewUsageMetricState(d *db.DB, clock *StreamClock, bucketDuration time.Duration) *DBUsageMetricState {
	if bucketDuration <= 0 {
		bucketDuration = DefaultUsageBucketDuration
	}
	return &DBUsageMetricState{
		bucket:   db.NewColumnFamily[*UsageBucket](d, cfUsageMetricBucket, "USAGE_METRICS"),
		clock:    clock,
		duration: bucketDuration.Milliseconds(),
	}
}

func (s *DBUsageMetricState) ActiveBucket(ctx context.Context) (*UsageBucket, bool, error) {
	return s.bucket.Get(ctx, singleton)
}

func (s *DBUsageMetricState) newBucket(fromTime int64) *UsageBucket {
	return &UsageBucket{FromTime: fromTime, ToTime: fromTime + s.duration}
}

func (s *DBUsageMetricState) ResetActiveBucket(ctx context.Context, fromTime int64) error {
	active, ok, err := s.ActiveBucket(ctx)
	if err != nil {
		return err
	}
	if ok && active.FromTime == fromTime {
		return nil
	}
	return s.bucket.Upsert(ctx, singleton, s.newBucket(fromTime))
}

func (s *DBUsageMetricState) RecordRPI(ctx context.Context, tenantID string) error {
	return s.record(ctx, func(b *UsageBucket) {
		if b.RPI == nil {
			b.RPI = map[string]int64{}
		}
		b.RPI[tenantOrDefault(tenantID)]++
	})
}

func (s *DBUsageMetricState) RecordEDI(ctx context.Context, tenantID string) error {
	return s.record(ctx, func(b *UsageBucket) {
		if b.EDI == nil {
			b.EDI = map[string]int64{}
		}
		b.EDI[tenantOrDefault(tenantID)]++
	})
}

// record applies count to the active bucket, opening one at the current
// stream time if there is none yet.
func (s *DBUsageMetricState) record(ctx context.Context, count func(*UsageBucket)) error {
	active, ok, err := s.ActiveBucket(ctx)
	if err != nil {
		return err
	}
	if !ok {
		now, err := s.clock.Now(ctx)
		if err != nil {
			return err
		}
		active = s.newBucket(now)
	}
	count(active)
	return s.bucket.Upsert(ctx, singleton, active)
}
