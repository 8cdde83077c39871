package voice

import (
	"context"
	"log/slog"
	"time"
)

const (
	// speakingSamplePeriod is how often the local audio energy is polled.
	speakingSamplePeriod = 200 * time.Millisecond

	// speakingThreshold is the normalized energy above which the local
	// participant counts as speaking.
	speakingThreshold = 0.02
)

// LevelSource reports the current energy of the local capture path,
// normalized to [0, 1].
type LevelSource interface {
	Level() (float64, error)
}

// SpeakingDetector samples the capture level and publishes transitions
// between speaking and silent. The published flag drives UI indicators only;
// audio keeps flowing regardless.
type SpeakingDetector struct {
	source  LevelSource
	publish func(ctx context.Context, speaking bool) error
	logger  *slog.Logger

	speaking bool
}

func NewSpeakingDetector(source LevelSource, publish func(ctx context.Context, speaking bool) error, logger *slog.Logger) *SpeakingDetector {
	return &SpeakingDetector{
		source:  source,
		publish: publish,
		logger:  logger,
	}
}

// Run polls until the context is cancelled. Only state changes are
// published; a steady level produces no writes.
func (d *SpeakingDetector) Run(ctx context.Context) error {
	ticker := time.NewTicker(speakingSamplePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			level, err := d.source.Level()
			if err != nil {
				d.logger.WarnContext(ctx, "sample audio level", "error", err)
				continue
			}
			speaking := level >= speakingThreshold
			if speaking == d.speaking {
				continue
			}
			d.speaking = speaking
			if err := d.publish(ctx, speaking); err != nil {
				d.logger.WarnContext(ctx, "publish speaking state", "error", err)
			}
		}
	}
}
