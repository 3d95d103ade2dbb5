package gateway

import (
	"log/slog"
	"strconv"
	"time"
)

// Channels pushed to dashboard clients.
const (
	ChannelUpdate = "update"
	ChannelStats  = "stats"
)

// appendEnvelope hand-builds {"channel":..,"data":..,"ts":..,"seq":..}
// around an already encoded JSON payload.
func appendEnvelope(buf []byte, channel string, data []byte, now time.Time, seq int64) []byte {
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}

// broadcast wraps data in an envelope and queues it for every client.
// Sequenced channels are numbered, remembered as the latest value and kept
// for replay; unsequenced ones (stats) carry seq 0.
func (h *Hub) broadcast(channel string, data []byte, sequenced bool) []byte {
	now := h.now().UTC()

	h.mu.Lock()
	var seq int64
	if sequenced {
		h.seq++
		seq = h.seq
	}
	buf := appendEnvelope(make([]byte, 0, len(channel)+len(data)+96), channel, data, now, seq)
	if sequenced {
		h.latest[channel] = buf
		h.replay.Push(seq, buf)
	}
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- buf:
		default:
			h.log.Warn("ws client send buffer full, dropping message", slog.String("channel", channel))
		}
	}
	return buf
}
