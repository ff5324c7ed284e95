package writer

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/dcstacview/tacview-ingest/internal/acmi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	promoted []int
	impacts  [][]acmi.Impact
	err      error
}

func (f *fakeStore) PromoteBatch(ctx context.Context, sessionID int32, payload *bytes.Buffer) error {
	if f.err != nil {
		return f.err
	}
	// Count rows by re-reading the int16 field count markers: every row
	// starts with a 15, the trailer with -1 (0xffff).
	b := payload.Bytes()
	b = b[19:] // strip the fixed header
	n := 0
	for len(b) >= 2 {
		fc := binary.BigEndian.Uint16(b)
		if fc == 0xffff {
			break
		}
		n++
		b = b[2:]
		for i := 0; i < int(fc); i++ {
			ln := binary.BigEndian.Uint32(b)
			b = b[4+ln:]
		}
	}
	f.promoted = append(f.promoted, n)
	return nil
}

func (f *fakeStore) InsertImpacts(ctx context.Context, impacts []acmi.Impact) error {
	if f.err != nil {
		return f.err
	}
	cp := append([]acmi.Impact(nil), impacts...)
	f.impacts = append(f.impacts, cp)
	return nil
}

func TestBulkWriterFlushesAtThreshold(t *testing.T) {
	store := &fakeStore{}
	w := NewBulkWriter(store, 7, 2)

	w.AddEvent(acmi.Event{ID: 1})
	require.NoError(t, w.FlushIfFull(context.Background()))
	assert.Empty(t, store.promoted, "below threshold should not flush")

	w.AddEvent(acmi.Event{ID: 2})
	require.NoError(t, w.FlushIfFull(context.Background()))
	require.Len(t, store.promoted, 1)
	assert.Equal(t, 2, store.promoted[0])
}

func TestBulkWriterForceFlushBelowThreshold(t *testing.T) {
	store := &fakeStore{}
	w := NewBulkWriter(store, 7, 500)

	w.AddEvent(acmi.Event{ID: 1})
	require.NoError(t, w.Flush(context.Background()))
	require.Len(t, store.promoted, 1)
	assert.Equal(t, 1, store.promoted[0])
}

func TestBulkWriterFlushIsNoOpWhenEmpty(t *testing.T) {
	store := &fakeStore{}
	w := NewBulkWriter(store, 7, 500)
	require.NoError(t, w.Flush(context.Background()))
	assert.Empty(t, store.promoted)
}

func TestBulkWriterQueuesImpactsSeparatelyFromEvents(t *testing.T) {
	store := &fakeStore{}
	w := NewBulkWriter(store, 7, 500)

	target := int32(2)
	w.QueueImpact(acmi.Impact{SessionID: 7, Target: target, Weapon: 3, TimeOffset: 12.5, ImpactDist: 9.1})
	require.NoError(t, w.Flush(context.Background()))

	assert.Empty(t, store.promoted, "no events were buffered")
	require.Len(t, store.impacts, 1)
	assert.Len(t, store.impacts[0], 1)
	assert.Equal(t, target, store.impacts[0][0].Target)
}

func TestEncodeEventRoundTripsFieldCountAndValues(t *testing.T) {
	e := acmi.Event{
		ID: 10, SessionID: 7, LastSeen: 12.5, Alive: true,
		Lat: 1.5, Lon: -2.5, Alt: 100, Roll: 1, Pitch: 2, Yaw: 3,
		UCoord: 4, VCoord: 5, Heading: 6, VelocityKts: 450, Updates: 9,
	}
	encoded := EncodeEvent(e)

	require.GreaterOrEqual(t, len(encoded), 2)
	fieldCount := binary.BigEndian.Uint16(encoded[:2])
	assert.EqualValues(t, eventFieldCount, fieldCount)

	rest := encoded[2:]
	lenID := binary.BigEndian.Uint32(rest[:4])
	assert.EqualValues(t, 4, lenID)
	idVal := int32(binary.BigEndian.Uint32(rest[4:8]))
	assert.Equal(t, e.ID, idVal)
}
