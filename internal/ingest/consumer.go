// Package ingest wires the framer, reference state, resolver and bulk
// writer into the single cooperative consumer loop that drives one
// recording from socket to database.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/dcstacview/tacview-ingest/internal/acmi"
	"github.com/dcstacview/tacview-ingest/internal/writer"
	"github.com/dcstacview/tacview-ingest/pkg/log"
)

// SessionRepo is the subset of repository.SessionRepo the consumer needs.
type SessionRepo interface {
	InsertSession(ctx context.Context, s *acmi.Session, overwrite bool) error
	UpdateStatus(ctx context.Context, sessionID int32, status string) error
}

// ObjectRepo is the subset of repository.ObjectRepo the consumer needs.
type ObjectRepo interface {
	InsertFirstSeen(ctx context.Context, rec *acmi.ObjectRec) error
}

// Framer is the subset of acmi.Framer the consumer needs, broken out so
// tests can supply an in-memory stand-in.
type Framer interface {
	Open(ctx context.Context) error
	ReadFrame() ([]byte, error)
	Close() error
}

// Consumer drives one recording end to end: handshake, reference-header
// binding, then the per-frame loop described by the component design, until
// end of file, a configured iteration cap, or cancellation.
type Consumer struct {
	framer      Framer
	sessionRepo SessionRepo
	objectRepo  ObjectRepo
	eventStore  writer.EventStore

	resolverCfg   acmi.ResolverConfig
	overwrite     bool
	batchSize     int
	maxIterations int
}

// Config bundles the tunables Run needs beyond its collaborators.
type Config struct {
	ResolverCfg   acmi.ResolverConfig
	Overwrite     bool
	BatchSize     int
	MaxIterations int // 0 disables the cap
}

// NewConsumer returns a Consumer wired to its collaborators.
func NewConsumer(framer Framer, sessionRepo SessionRepo, objectRepo ObjectRepo, eventStore writer.EventStore, cfg Config) *Consumer {
	return &Consumer{
		framer:        framer,
		sessionRepo:   sessionRepo,
		objectRepo:    objectRepo,
		eventStore:    eventStore,
		resolverCfg:   cfg.ResolverCfg,
		overwrite:     cfg.Overwrite,
		batchSize:     cfg.BatchSize,
		maxIterations: cfg.MaxIterations,
	}
}

// Run opens the connection, binds the session once its reference header is
// complete, and drives frames until the peer closes the connection, the
// iteration cap is reached, or ctx is cancelled. Any other error raised after
// the session is bound marks the session Error before being returned; errors
// from opening the connection or binding the session (including
// acmi.ErrDuplicateSession) are returned without a status update, since no
// session row of this run exists yet.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.framer.Open(ctx); err != nil {
		return fmt.Errorf("opening connection: %w", err)
	}
	defer c.framer.Close()

	session := acmi.NewSession()

	if err := c.bindSession(ctx, session); err != nil {
		return err
	}

	w := writer.NewBulkWriter(c.eventStore, session.SessionID, c.batchSize)

	err := c.runLoop(ctx, session, w)
	if err != nil {
		if isGracefulTermination(ctx, err) {
			if flushErr := w.Flush(ctx); flushErr != nil {
				log.Errorf("flushing on graceful termination: %v", flushErr)
			}
			return c.sessionRepo.UpdateStatus(ctx, session.SessionID, acmi.StatusSuccess)
		}

		log.Errorf("session %d terminated with error: %v", session.SessionID, err)
		if statusErr := c.sessionRepo.UpdateStatus(ctx, session.SessionID, acmi.StatusError); statusErr != nil {
			log.Errorf("marking session %d Error: %v", session.SessionID, statusErr)
		}
		return err
	}

	if err := w.Flush(ctx); err != nil {
		_ = c.sessionRepo.UpdateStatus(ctx, session.SessionID, acmi.StatusError)
		return fmt.Errorf("final flush: %w", err)
	}
	return c.sessionRepo.UpdateStatus(ctx, session.SessionID, acmi.StatusSuccess)
}

// bindSession consumes header/tick frames until all_refs is true, then
// inserts the session row and binds session.SessionID.
func (c *Consumer) bindSession(ctx context.Context, session *acmi.Session) error {
	for !session.AllRefs {
		line, err := c.framer.ReadFrame()
		if err != nil {
			return fmt.Errorf("reading reference header: %w", err)
		}

		frame, err := acmi.DecodeFrame(line)
		if err != nil {
			return fmt.Errorf("decoding reference header: %w", err)
		}

		switch frame.Kind {
		case acmi.FrameHeader:
			if err := session.ApplyHeaderKV(frame.HeaderKV); err != nil {
				return fmt.Errorf("applying reference header: %w", err)
			}
		case acmi.FrameTick:
			session.AdvanceTime(frame.TickOffset)
		default:
			// Updates/removals before all_refs is true have no session to
			// attach to; there is nothing meaningful to do with them yet.
		}
	}

	if err := c.sessionRepo.InsertSession(ctx, session, c.overwrite); err != nil {
		return fmt.Errorf("binding session: %w", err)
	}
	return nil
}

// exitSentinel is the synthetic line a file server may send once its
// recording is exhausted; runLoop treats it as end of file.
const exitSentinel = "-exit"

// runLoop processes frames after the session is bound. It returns
// acmi.ErrEndOfFile when the peer closes the connection or sends the exit
// sentinel, nil when the iteration cap is reached, or any other error the
// loop encountered.
func (c *Consumer) runLoop(ctx context.Context, session *acmi.Session, w *writer.BulkWriter) error {
	iterations := 0
	for {
		line, err := c.framer.ReadFrame()
		if err != nil {
			return err
		}
		if string(line) == exitSentinel {
			return acmi.ErrEndOfFile
		}

		frame, err := acmi.DecodeFrame(line)
		if err != nil {
			return fmt.Errorf("decoding frame: %w", err)
		}

		switch frame.Kind {
		case acmi.FrameTick:
			session.AdvanceTime(frame.TickOffset)
			if err := w.FlushIfFull(ctx); err != nil {
				return fmt.Errorf("flushing batch: %w", err)
			}

		case acmi.FrameHeader:
			// Stray header frames after binding are silently ignored; the
			// pre-bind gate in bindSession is the sole path that acts on
			// reference fields.

		case acmi.FrameUpdate:
			rec, created, err := session.ApplyUpdate(frame.TacID, frame.KVs, c.resolverCfg)
			if err != nil {
				return fmt.Errorf("applying update: %w", err)
			}
			if created {
				if err := c.objectRepo.InsertFirstSeen(ctx, rec); err != nil {
					return fmt.Errorf("inserting first-seen object: %w", err)
				}
			}
			w.AddEvent(acmi.EventFromRec(rec))

		case acmi.FrameRemove:
			rec, impact, err := session.ApplyRemoval(frame.TacID, c.resolverCfg)
			if err != nil {
				return fmt.Errorf("applying removal: %w", err)
			}
			w.AddEvent(acmi.EventFromRec(rec))
			if impact != nil {
				w.QueueImpact(*impact)
			}
		}

		iterations++
		if c.maxIterations > 0 && iterations >= c.maxIterations {
			return nil
		}
	}
}

// isGracefulTermination reports whether err represents a normal shutdown
// (end of file or cancellation) rather than a genuine failure.
func isGracefulTermination(ctx context.Context, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, acmi.ErrEndOfFile) {
		return true
	}
	return ctx.Err() != nil
}
