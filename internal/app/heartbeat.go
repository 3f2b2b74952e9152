package app

import (
	"context"
	"time"

	"github.com/codesync/collab/internal/metrics"
	"github.com/rs/zerolog/log"
)

type SweepStats struct {
	Probed int
	Reaped int
}

// Heartbeat periodically reaps connections that missed the previous probe.
// It is the only detector of peers that vanish without a leave.
type Heartbeat struct {
	period   time.Duration
	sessions *Sessions
}

func NewHeartbeat(period time.Duration, sessions *Sessions) *Heartbeat {
	return &Heartbeat{period: period, sessions: sessions}
}

func (h *Heartbeat) Run(ctx context.Context) error {
	t := time.NewTicker(h.period)
	defer t.Stop()
	log.Info().Str("module", "app.heartbeat").Dur("period", h.period).Msg("heartbeat started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.heartbeat").Msg("heartbeat stopped")
			return nil
		case <-t.C:
			h.Sweep()
		}
	}
}

// Sweep closes unresponsive connections and probes the rest. Closing only
// triggers the transport's disconnect path; membership cleanup happens there.
func (h *Heartbeat) Sweep() SweepStats {
	var st SweepStats
	for _, p := range h.sessions.Probers() {
		if !p.Alive() {
			log.Info().Str("module", "app.heartbeat").Str("sid", string(p.ID())).Msg("terminating inactive connection")
			p.Close()
			st.Reaped++
			continue
		}
		p.SetAlive(false)
		if err := p.Ping(); err != nil {
			log.Warn().Err(err).Str("module", "app.heartbeat").Str("sid", string(p.ID())).Msg("ping failed")
		}
		st.Probed++
	}
	metrics.HeartbeatReaped.Add(float64(st.Reaped))
	metrics.Connections.Set(float64(h.sessions.Count()))
	log.Debug().Str("module", "app.heartbeat").Int("probed", st.Probed).Int("reaped", st.Reaped).Msg("sweep done")
	return st
}
