package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"atr-radar.klederson.com/internal/position"
)

// Message types carrying directionality data.
const (
	TypeRawDirectionality = "RAW_DIRECTIONALITY"
	TypeDirectionalityRaw = "DIRECTIONALITY_RAW"
	TypeCustom            = "CUSTOM"
)

var (
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrMissingTagID    = errors.New("message has no tag id")
	ErrMalformed       = errors.New("malformed message")
)

var (
	tagIDKeys     = []string{"epc", "EPC", "idHex", "tagId", "tag_id"}
	rssiKeys      = []string{"peakRssi", "rssi", "RSSI"}
	antennaKeys   = []string{"antenna", "antennaId", "antenna_id"}
	timestampKeys = []string{"timestamp", "eventTimestamp", "time"}
)

// envelope is the outer shape shared by every reader event.
type envelope struct {
	Type      string          `json:"type"`
	Timestamp json.RawMessage `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// DecodeAll decodes a frame holding one event object or an array of them.
// received is used when an event carries no timestamp.
// Events of other types are skipped; ErrUnsupportedType is returned only when
// nothing in the frame was usable.
func DecodeAll(raw []byte, received time.Time) ([]position.RawAngularReading, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	if trimmed[0] != '[' {
		r, err := Decode(trimmed, received)
		if err != nil {
			return nil, err
		}
		return []position.RawAngularReading{r}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	out := make([]position.RawAngularReading, 0, len(items))
	var firstErr error
	for _, item := range items {
		r, err := Decode(item, received)
		if err != nil {
			if firstErr == nil || errors.Is(firstErr, ErrUnsupportedType) {
				firstErr = err
			}
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// Decode turns one event object into a reading.
func Decode(raw []byte, received time.Time) (position.RawAngularReading, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return position.RawAngularReading{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var data map[string]json.RawMessage
	if len(env.Data) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return position.RawAngularReading{}, fmt.Errorf("%w: data: %v", ErrMalformed, err)
		}
	}

	var angles map[string]json.RawMessage
	switch strings.ToUpper(env.Type) {
	case TypeRawDirectionality, TypeDirectionalityRaw:
		angles = data
	case TypeCustom:
		angles = data
		if nested, ok := data["directionality"]; ok {
			// Own map: keys inside directionality must not shadow the tag fields of data.
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(nested, &inner); err != nil {
				return position.RawAngularReading{}, fmt.Errorf("%w: directionality: %v", ErrMalformed, err)
			}
			angles = inner
		}
	default:
		return position.RawAngularReading{}, fmt.Errorf("%w: %q", ErrUnsupportedType, env.Type)
	}

	r := position.RawAngularReading{}
	r.TagID = stringField(data, tagIDKeys...)
	if r.TagID == "" {
		return r, ErrMissingTagID
	}

	// Absent angles read as 0 so the calculator never sees a missing value.
	r.Azimuth, _ = numberField(angles, "azimuth")
	r.Elevation, _ = numberField(angles, "elevation")

	if v, ok := numberField(data, rssiKeys...); ok {
		r.RSSI = &v
	}
	if v, ok := numberField(data, antennaKeys...); ok {
		a := int(v)
		r.Antenna = &a
	}

	r.Timestamp = received
	if ts, ok := parseTimestamp(env.Timestamp); ok {
		r.Timestamp = ts
	} else if ts, ok := parseTimestamp(rawField(data, timestampKeys...)); ok {
		r.Timestamp = ts
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	return r, nil
}

func rawField(m map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := m[k]; ok && len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}

func stringField(m map[string]json.RawMessage, keys ...string) string {
	v := rawField(m, keys...)
	if v == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	// Some firmwares send numeric ids.
	return strings.Trim(string(v), `" `)
}

// numberField accepts JSON numbers and numeric strings.
func numberField(m map[string]json.RawMessage, keys ...string) (float64, bool) {
	v := rawField(m, keys...)
	if v == nil {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(v json.RawMessage) (time.Time, bool) {
	if len(v) == 0 {
		return time.Time{}, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return epochToTime(f), true
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return time.Time{}, false
	}
	return ParseTime(s)
}

// ParseTime parses the textual timestamp forms seen in reader events and logs:
// RFC 3339, ISO 8601 with a +0000 offset, zone-less forms (read as UTC), and
// epoch seconds or milliseconds.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epochToTime(f), true
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// epochToTime treats values above 1e12 as milliseconds.
func epochToTime(f float64) time.Time {
	if f > 1e12 {
		return time.UnixMicro(int64(math.Round(f * 1000))).UTC()
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}
