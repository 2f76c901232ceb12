package decoder

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Message is the summary of one rtl_433 JSON event
type Message struct {
	Model     string    `json:"model"`
	ID        string    `json:"id,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Time      time.Time `json:"time"`
	Frequency float64   `json:"freq,omitempty"` // MHz, as reported by rtl_433
	RSSI      float64   `json:"rssi,omitempty"`
	SNR       float64   `json:"snr,omitempty"`
	Raw       string    `json:"raw"`
}

// ParseMessage summarises an rtl_433 line produced with `-F json -M level -M time:unix`.
// Lines that are not JSON objects with a model are rejected.
func ParseMessage(line string) (*Message, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") || !gjson.Valid(line) {
		return nil, false
	}

	fields := gjson.GetMany(line, "model", "id", "channel", "time", "freq", "rssi", "snr")
	if !fields[0].Exists() {
		return nil, false
	}

	m := Message{
		Model:     fields[0].String(),
		ID:        fields[1].String(),
		Channel:   fields[2].String(),
		Frequency: fields[4].Float(),
		RSSI:      fields[5].Float(),
		SNR:       fields[6].Float(),
		Raw:       line,
	}

	if ts := fields[3]; ts.Exists() {
		// time:unix prints seconds, possibly with a fraction, as a string
		secs := ts.Float()
		m.Time = time.Unix(0, int64(secs*float64(time.Second))).UTC()
	}

	return &m, true
}
