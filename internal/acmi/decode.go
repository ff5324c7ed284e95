package acmi

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// FrameKind tags the variant produced by DecodeFrame, replacing the
// first-byte dispatch in favor of a small sum type the consumer switches
// with a small sum type the consumer switches on exactly once.
type FrameKind int

const (
	FrameHeader FrameKind = iota
	FrameTick
	FrameUpdate
	FrameRemove
)

// KV is one key=value chunk of an update/header payload.
type KV struct {
	Key   string
	Value string
}

// Frame is the decoded form of one ACMI line.
type Frame struct {
	Kind FrameKind

	// FrameTick
	TickOffset float64

	// FrameHeader: zero value Key means the frame's last comma-field had
	// no '=' and should be silently ignored, matching the original
	// client's behavior on a malformed/absent header token.
	HeaderKV KV

	// FrameUpdate / FrameRemove
	TacID uint32
	// FrameUpdate
	KVs []KV
}

// DecodeFrame parses one newline-stripped ACMI frame. The first byte
// selects the variant.
func DecodeFrame(line []byte) (Frame, error) {
	if len(line) == 0 {
		return Frame{}, fmt.Errorf("%w: empty line", ErrMalformedFrame)
	}

	switch line[0] {
	case '#':
		v, err := strconv.ParseFloat(string(line[1:]), 64)
		if err != nil {
			return Frame{}, fmt.Errorf("%w: time tick %q: %v", ErrMalformedFrame, line, err)
		}
		return Frame{Kind: FrameTick, TickOffset: v}, nil

	case '0':
		fields := strings.Split(string(line), ",")
		kv, ok := splitKV(fields[len(fields)-1])
		if !ok {
			return Frame{Kind: FrameHeader}, nil
		}
		return Frame{Kind: FrameHeader, HeaderKV: kv}, nil

	case '-':
		id, err := strconv.ParseUint(string(line[1:]), 16, 32)
		if err != nil {
			return Frame{}, fmt.Errorf("%w: removal id %q: %v", ErrMalformedFrame, line[1:], err)
		}
		return Frame{Kind: FrameRemove, TacID: uint32(id)}, nil

	default:
		comma := bytes.IndexByte(line, ',')
		if comma < 0 {
			return Frame{}, fmt.Errorf("%w: update frame missing comma", ErrMalformedFrame)
		}
		id, err := strconv.ParseUint(string(line[:comma]), 16, 32)
		if err != nil {
			return Frame{}, fmt.Errorf("%w: update id %q: %v", ErrMalformedFrame, line[:comma], err)
		}
		kvs, err := splitKVs(string(line[comma+1:]))
		if err != nil {
			return Frame{}, err
		}
		return Frame{Kind: FrameUpdate, TacID: uint32(id), KVs: kvs}, nil
	}
}

// splitKV splits one "KEY=VAL" chunk on the first '='. ok is false if there
// is no '=' in the chunk.
func splitKV(chunk string) (KV, bool) {
	i := strings.IndexByte(chunk, '=')
	if i < 0 {
		return KV{}, false
	}
	return KV{Key: chunk[:i], Value: chunk[i+1:]}, true
}

// splitKVs splits an update payload into its comma-separated KEY=VAL chunks.
func splitKVs(payload string) ([]KV, error) {
	parts := strings.Split(payload, ",")
	kvs := make([]KV, 0, len(parts))
	for _, p := range parts {
		kv, ok := splitKV(p)
		if !ok {
			return nil, fmt.Errorf("%w: chunk %q missing '='", ErrMalformedFrame, p)
		}
		kvs = append(kvs, kv)
	}
	return kvs, nil
}

// coordFields maps the pipe-separated field count of a T=... tuple to the
// field names in wire order.
var coordFields = map[int][]string{
	3: {"lon", "lat", "alt"},
	5: {"lon", "lat", "alt", "u", "v"},
	6: {"lon", "lat", "alt", "roll", "pitch", "yaw"},
	9: {"lon", "lat", "alt", "roll", "pitch", "yaw", "u", "v", "heading"},
}

// applyCoordTuple parses a T=... value and writes the present fields into
// rec, adding refLat/refLon to the lat/lon offsets. Empty fields between
// pipes retain the record's previous value.
func applyCoordTuple(rec *ObjectRec, value string, refLat, refLon float64) error {
	parts := strings.Split(value, "|")
	fields, ok := coordFields[len(parts)]
	if !ok {
		return fmt.Errorf("%w: T tuple with %d fields: %q", ErrMalformedFrame, len(parts), value)
	}

	for i, name := range fields {
		raw := parts[i]
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%w: T tuple field %s=%q: %v", ErrMalformedFrame, name, raw, err)
		}
		switch name {
		case "lon":
			rec.Lon = refLon + v
		case "lat":
			rec.Lat = refLat + v
		case "alt":
			rec.Alt = v
		case "roll":
			rec.Roll = v
		case "pitch":
			rec.Pitch = v
		case "yaw":
			rec.Yaw = v
		case "u":
			rec.UCoord = v
		case "v":
			rec.VCoord = v
		case "heading":
			rec.Heading = v
		}
	}
	return nil
}
