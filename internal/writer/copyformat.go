// Package writer implements the bulk event writer: it packs per-tick object
// snapshots into the Postgres binary COPY wire format, flushes at a time tick
// once the row threshold is reached or unconditionally at end of stream, and
// hands the buffer and any queued impact rows to a repository for the
// staging->promote transaction.
package writer

import (
	"encoding/binary"
	"math"

	"github.com/dcstacview/tacview-ingest/internal/acmi"
)

// eventFieldCount is the number of columns packed per event row by
// EncodeEvent.
const eventFieldCount = 15

// pgCopySignature is the fixed 11-byte signature that opens a Postgres
// binary COPY stream.
var pgCopySignature = [11]byte{'P', 'G', 'C', 'O', 'P', 'Y', '\n', 0xff, '\r', '\n', 0}

// CopyHeader returns the binary COPY header: the signature followed by two
// 32-bit zero flag/extension words.
func CopyHeader() []byte {
	buf := make([]byte, 0, 19)
	buf = append(buf, pgCopySignature[:]...)
	buf = binary.BigEndian.AppendUint32(buf, 0)
	buf = binary.BigEndian.AppendUint32(buf, 0)
	return buf
}

// CopyTrailer returns the binary COPY trailer: an int16 -1 field count.
func CopyTrailer() []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, 0xffff) // -1 as int16
	return buf
}

func appendInt32Field(buf []byte, v int32) []byte {
	buf = binary.BigEndian.AppendUint32(buf, 4)
	return binary.BigEndian.AppendUint32(buf, uint32(v))
}

func appendFloat32Field(buf []byte, v float64) []byte {
	buf = binary.BigEndian.AppendUint32(buf, 4)
	return binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(v)))
}

func appendBoolField(buf []byte, v bool) []byte {
	buf = binary.BigEndian.AppendUint32(buf, 1)
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// EncodeEvent packs one event row in fixed field order and width: id:i32,
// session_id:i32, last_seen:f32, alive:bool, lat:f32, lon:f32, alt:f32,
// roll:f32, pitch:f32, yaw:f32, u_coord:f32, v_coord:f32, heading:f32,
// velocity_kts:f32, updates:i32 -- prefixed by the int16 field count 15.
func EncodeEvent(e acmi.Event) []byte {
	buf := make([]byte, 0, 2+eventFieldCount*8)
	buf = binary.BigEndian.AppendUint16(buf, uint16(eventFieldCount))

	buf = appendInt32Field(buf, e.ID)
	buf = appendInt32Field(buf, e.SessionID)
	buf = appendFloat32Field(buf, e.LastSeen)
	buf = appendBoolField(buf, e.Alive)
	buf = appendFloat32Field(buf, e.Lat)
	buf = appendFloat32Field(buf, e.Lon)
	buf = appendFloat32Field(buf, e.Alt)
	buf = appendFloat32Field(buf, e.Roll)
	buf = appendFloat32Field(buf, e.Pitch)
	buf = appendFloat32Field(buf, e.Yaw)
	buf = appendFloat32Field(buf, e.UCoord)
	buf = appendFloat32Field(buf, e.VCoord)
	buf = appendFloat32Field(buf, e.Heading)
	buf = appendFloat32Field(buf, e.VelocityKts)
	buf = appendInt32Field(buf, e.Updates)

	return buf
}
