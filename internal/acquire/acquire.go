// Package acquire runs the ingestion pipeline: raw lines from the link
// manager are decoded into samples and pushed into the history store.
// All pipeline errors are handled here; consumers of the store only
// ever see plausible, ordered samples.
package acquire

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/ironmon/internal/decode"
	"codeberg.org/mutker/ironmon/internal/history"
	"codeberg.org/mutker/ironmon/internal/link"
	"codeberg.org/mutker/ironmon/internal/logger"
	"codeberg.org/mutker/ironmon/internal/telemetry"
)

type Service struct {
	mgr     *link.Manager
	decoder *decode.Decoder
	store   *history.Store
	capture telemetry.Collector

	rejected atomic.Uint64
	accepted atomic.Uint64
}

func NewService(mgr *link.Manager, decoder *decode.Decoder, store *history.Store, capture telemetry.Collector) *Service {
	return &Service{
		mgr:     mgr,
		decoder: decoder,
		store:   store,
		capture: capture,
	}
}

// Run drives the pipeline until the context is cancelled. It never
// returns an error in normal operation: unavailable devices, broken
// links and malformed records are all retried or dropped locally.
func (s *Service) Run(ctx context.Context) error {
	return s.mgr.Run(ctx,
		func(epoch uint64) {
			s.decoder.StartEpoch(epoch)
		},
		func(line []byte) {
			s.ingest(ctx, line)
		})
}

func (s *Service) ingest(ctx context.Context, line []byte) {
	sample, done, err := s.decoder.Decode(line)
	if err != nil {
		s.rejected.Add(1)
		logger.Debug().Err(err).Str("line", string(line)).Msg("Rejected record")
		return
	}

	if !done {
		return
	}

	s.store.Push(sample)
	s.accepted.Add(1)

	if err := s.capture.Record(ctx, time.Now(), sample); err != nil {
		logger.Warn().Err(err).Msg("Failed to capture sample")
	}
}

// Accepted returns the number of samples pushed since start.
func (s *Service) Accepted() uint64 {
	return s.accepted.Load()
}

// Rejected returns the number of lines dropped since start.
func (s *Service) Rejected() uint64 {
	return s.rejected.Load()
}
