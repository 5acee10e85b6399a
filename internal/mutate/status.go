package mutate

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"crm-cli/internal/logger"
	"crm-cli/internal/model"
	"crm-cli/internal/statusutil"
)

type EntityKind string

const (
	KindOffer EntityKind = "offer"
	KindTask  EntityKind = "task"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

type Request struct {
	Kind    EntityKind
	ID      int64
	Current string
	Target  string
}

// Outcome is the result of one transition. Callers apply it to their rows only
// when Applied reports true, and then set the status to Confirmed.
type Outcome struct {
	Request
	Phase   Phase
	Changed bool
	// Stale is set when a newer transition for the same entity was issued
	// while this one was in flight.
	Stale bool
	Seq   uint64
	Err   error
	// Confirmed is the status the backend last accepted for the entity, when
	// the row should now show it. A failed latest transition carries the
	// target of an older one that succeeded while it was in flight.
	Confirmed string
}

func (o Outcome) Applied() bool {
	return o.Confirmed != ""
}

// Backend is the part of the API client the controller needs.
type Backend interface {
	SetOfferStatus(ctx context.Context, id int64, status model.OfferStatus) error
	SetTaskStatus(ctx context.Context, id int64, status model.TaskStatus) error
}

type key struct {
	kind EntityKind
	id   int64
}

// track is the per-entity sequencing state.
type track struct {
	seq      uint64
	inflight int
	// latestFailed is set once the newest transition came back with an error.
	latestFailed bool
	// confirmed holds the newest accepted target not yet handed to a caller
	// through a non-stale outcome.
	confirmedSeq uint64
	confirmed    string
}

// Controller runs confirm-then-apply status transitions. It never touches local
// rows itself; it reports whether the backend confirmed.
type Controller struct {
	backend Backend
	log     zerolog.Logger

	mu     sync.Mutex
	phases map[key]Phase
	tracks map[key]*track
}

func NewController(b Backend) *Controller {
	return &Controller{
		backend: b,
		log:     logger.Get().With().Str("component", "transition").Logger(),
		phases:  map[key]Phase{},
		tracks:  map[key]*track{},
	}
}

func validTarget(kind EntityKind, target string) bool {
	switch kind {
	case KindOffer:
		return statusutil.ValidOfferStatus(model.OfferStatus(target))
	case KindTask:
		return statusutil.ValidTaskStatus(model.TaskStatus(target))
	}
	return false
}

// Transition validates the target, short-circuits no-op changes and otherwise
// issues the PATCH. It blocks until the backend answers.
func (c *Controller) Transition(ctx context.Context, req Request) Outcome {
	out := Outcome{Request: req}
	if !validTarget(req.Kind, req.Target) {
		out.Phase = PhaseFailed
		out.Err = fmt.Errorf("%w: %q is not a valid %s status", ErrInvalidStatus, req.Target, req.Kind)
		return out
	}
	if req.Current == req.Target {
		out.Phase = PhaseSucceeded
		return out
	}

	k := key{req.Kind, req.ID}
	c.mu.Lock()
	t := c.tracks[k]
	if t == nil {
		t = &track{}
		c.tracks[k] = t
	}
	t.seq++
	t.inflight++
	t.latestFailed = false
	out.Seq = t.seq
	c.phases[k] = PhasePending
	c.mu.Unlock()

	var err error
	switch req.Kind {
	case KindOffer:
		err = c.backend.SetOfferStatus(ctx, req.ID, model.OfferStatus(req.Target))
	case KindTask:
		err = c.backend.SetTaskStatus(ctx, req.ID, model.TaskStatus(req.Target))
	}

	c.mu.Lock()
	c.settle(k, t, &out, err)
	c.mu.Unlock()

	ev := c.log.Debug()
	if err != nil {
		ev = c.log.Info().Err(err)
	}
	ev.Str("kind", string(req.Kind)).
		Int64("id", req.ID).
		Str("from", req.Current).
		Str("to", req.Target).
		Str("phase", out.Phase.String()).
		Bool("stale", out.Stale).
		Str("confirmed", out.Confirmed).
		Msg("status transition")
	return out
}

// settle records a finished transition and decides what the caller's row
// should show. Only the newest request decides, except that an older success
// landing after the newest one failed still reflects what the backend holds.
// Callers hold c.mu.
func (c *Controller) settle(k key, t *track, out *Outcome, err error) {
	t.inflight--
	out.Stale = t.seq != out.Seq
	if err != nil {
		out.Phase = PhaseFailed
		out.Err = newTransitionError(out.Request, err)
	} else {
		out.Phase = PhaseSucceeded
		out.Changed = true
		if out.Seq > t.confirmedSeq {
			t.confirmedSeq, t.confirmed = out.Seq, out.Target
		}
	}

	switch {
	case !out.Stale && err == nil:
		out.Confirmed = out.Target
		t.confirmed = ""
	case !out.Stale:
		t.latestFailed = true
		out.Confirmed = t.confirmed
		t.confirmed = ""
	case err == nil && t.latestFailed && t.confirmedSeq == out.Seq:
		out.Confirmed = out.Target
		t.confirmed = ""
	}
	if !out.Stale {
		c.phases[k] = out.Phase
	}
	if t.inflight == 0 {
		t.confirmed = ""
	}
}

// Phase is the state of the latest transition for the entity.
func (c *Controller) Phase(kind EntityKind, id int64) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phases[key{kind, id}]
}

// Reset forgets the entity's transition state (e.g. after it was deleted).
func (c *Controller) Reset(kind EntityKind, id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.phases, key{kind, id})
	if t := c.tracks[key{kind, id}]; t != nil && t.inflight == 0 {
		delete(c.tracks, key{kind, id})
	}
}
