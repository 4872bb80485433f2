package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide channel traffic counter.
var Stats = &stats{}

type stats struct {
	FramesSent   atomic.Int64 // sealed frames handed to the transport
	FramesRecv   atomic.Int64 // frames received from the transport, before decode
	BytesSent    atomic.Int64 // wire bytes of FramesSent
	BytesRecv    atomic.Int64 // wire bytes of FramesRecv
	Replays      atomic.Int64 // frames dropped by the replay window
	MessagesSent atomic.Int64 // application messages fragmented and sent
	MessagesRecv atomic.Int64 // application messages fully reassembled
}

func (s *stats) AddSent(n int)   { s.FramesSent.Add(1); s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int)   { s.FramesRecv.Add(1); s.BytesRecv.Add(int64(n)) }
func (s *stats) AddReplay()      { s.Replays.Add(1) }
func (s *stats) AddMessageSent() { s.MessagesSent.Add(1) }
func (s *stats) AddMessageRecv() { s.MessagesRecv.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter logs channel statistics every 10 seconds while there is
// traffic. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevSent, prevRecv, prevMsgOut, prevMsgIn, prevReplays int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				msgOut := Stats.MessagesSent.Load()
				msgIn := Stats.MessagesRecv.Load()
				replays := Stats.Replays.Load()

				outS := float64(sent-prevSent) / 10.0
				inS := float64(recv-prevRecv) / 10.0

				if msgOut != prevMsgOut || msgIn != prevMsgIn || replays != prevReplays || inS > 10 || outS > 10 {
					pterm.DefaultLogger.Info(formatStats(inS, outS, msgIn-prevMsgIn, msgOut-prevMsgOut, replays-prevReplays))
				}

				prevSent = sent
				prevRecv = recv
				prevMsgOut = msgOut
				prevMsgIn = msgIn
				prevReplays = replays

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// FormatBytes formats a byte count into exactly 8 characters,
// e.g. "99.0   B", " 1.5 KiB", "98.9 GiB".
func FormatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

func formatStats(inS, outS float64, msgIn, msgOut, replays int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Msg: %2d↓ %2d↑ | Replay: %d",
		FormatBytes(inS),
		FormatBytes(outS),
		msgIn,
		msgOut,
		replays,
	)
}
