package ws

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultHeartbeatInterval is the liveness period.
const DefaultHeartbeatInterval = time.Second

// Heartbeat periodically sends a heartbeat frame to every active connection.
type Heartbeat struct {
	hub      *Hub
	interval time.Duration
}

// NewHeartbeat creates a scheduler over hub.
func NewHeartbeat(hub *Hub, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{hub: hub, interval: interval}
}

// Run ticks until ctx is done.
func (hb *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(hb.interval)
	defer ticker.Stop()

	log.Debug().Dur("interval", hb.interval).Msg("heartbeat started")
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("heartbeat stopped")
			return
		case t := <-ticker.C:
			hb.hub.Broadcast(HeartbeatFrame{Type: TypeHeartbeat, Time: t.UnixMilli()})
		}
	}
}
