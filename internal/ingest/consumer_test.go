package ingest

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcstacview/tacview-ingest/internal/acmi"
)

type fakeFramer struct {
	lines [][]byte
	pos   int
}

func newFakeFramer(lines ...string) *fakeFramer {
	f := &fakeFramer{}
	for _, l := range lines {
		f.lines = append(f.lines, []byte(l))
	}
	return f
}

func (f *fakeFramer) Open(ctx context.Context) error { return nil }
func (f *fakeFramer) Close() error                   { return nil }
func (f *fakeFramer) ReadFrame() ([]byte, error) {
	if f.pos >= len(f.lines) {
		return nil, acmi.ErrEndOfFile
	}
	line := f.lines[f.pos]
	f.pos++
	return line, nil
}

type fakeSessionRepo struct {
	nextID      int32
	overwrite   bool
	insertErr   error
	finalStatus string
}

func (r *fakeSessionRepo) InsertSession(ctx context.Context, s *acmi.Session, overwrite bool) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.overwrite = overwrite
	r.nextID++
	s.SessionID = r.nextID
	return nil
}

func (r *fakeSessionRepo) UpdateStatus(ctx context.Context, sessionID int32, status string) error {
	r.finalStatus = status
	return nil
}

type fakeObjectRepo struct {
	inserted []uint32
	nextID   int32
}

func (r *fakeObjectRepo) InsertFirstSeen(ctx context.Context, rec *acmi.ObjectRec) error {
	r.nextID++
	rec.ID = r.nextID
	r.inserted = append(r.inserted, rec.TacID)
	return nil
}

type fakeEventStore struct {
	promotedRows int
	impacts      int
}

func (s *fakeEventStore) PromoteBatch(ctx context.Context, sessionID int32, payload *bytes.Buffer) error {
	s.promotedRows++
	return nil
}

func (s *fakeEventStore) InsertImpacts(ctx context.Context, impacts []acmi.Impact) error {
	s.impacts += len(impacts)
	return nil
}

func TestConsumerRunBindsSessionAndMarksSuccess(t *testing.T) {
	framer := newFakeFramer(
		"0,ReferenceLatitude=0.0",
		"0,ReferenceLongitude=0.0",
		"0,RecordingTime=2019-01-01T12:12:01.101Z",
		"#1.0",
		"802,T=1.0|2.0|3.0,Name=FARP,Color=Blue,Type=Ground+Static+Aerodrome",
		"#2.0",
		"-802",
	)
	sessionRepo := &fakeSessionRepo{}
	objectRepo := &fakeObjectRepo{}
	eventStore := &fakeEventStore{}

	c := NewConsumer(framer, sessionRepo, objectRepo, eventStore, Config{
		ResolverCfg: acmi.DefaultResolverConfig(),
		BatchSize:   500_000,
	})

	err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, acmi.StatusSuccess, sessionRepo.finalStatus)
	assert.Equal(t, 1, eventStore.promotedRows, "final flush should promote the buffered events")
	assert.Len(t, objectRepo.inserted, 1, "the single new object should get a first-seen insert")
}

func TestConsumerRunStopsAtMaxIterationsWithoutError(t *testing.T) {
	framer := newFakeFramer(
		"0,ReferenceLatitude=0.0",
		"0,ReferenceLongitude=0.0",
		"0,RecordingTime=2019-01-01T12:12:01.101Z",
		"802,T=1.0|2.0|3.0,Name=FARP,Color=Blue",
		"803,T=1.0|2.0|3.0,Name=Bandit,Color=Red",
		"804,T=1.0|2.0|3.0,Name=Bogey,Color=Red",
	)
	sessionRepo := &fakeSessionRepo{}
	objectRepo := &fakeObjectRepo{}
	eventStore := &fakeEventStore{}

	c := NewConsumer(framer, sessionRepo, objectRepo, eventStore, Config{
		ResolverCfg:   acmi.DefaultResolverConfig(),
		BatchSize:     500_000,
		MaxIterations: 1,
	})

	err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, acmi.StatusSuccess, sessionRepo.finalStatus)
	assert.Len(t, objectRepo.inserted, 1, "loop should have stopped after the first update frame")
}

func TestConsumerRunMarksErrorOnMalformedFrame(t *testing.T) {
	framer := newFakeFramer(
		"0,ReferenceLatitude=0.0",
		"0,ReferenceLongitude=0.0",
		"0,RecordingTime=2019-01-01T12:12:01.101Z",
		"802,NameFARP", // missing '=' -- malformed
	)
	sessionRepo := &fakeSessionRepo{}
	objectRepo := &fakeObjectRepo{}
	eventStore := &fakeEventStore{}

	c := NewConsumer(framer, sessionRepo, objectRepo, eventStore, Config{
		ResolverCfg: acmi.DefaultResolverConfig(),
		BatchSize:   500_000,
	})

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, acmi.StatusError, sessionRepo.finalStatus)
}
