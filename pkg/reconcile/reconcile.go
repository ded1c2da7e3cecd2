// Package reconcile converges remote resources to their catalog descriptors.
//
// Every resource kind implements Kind once; Ensure drives the shared
// lookup, create, diff and update sequence. Kinds receive payloads whose
// references (groups, templates, hosts, media types) were already resolved to
// ids by natural key, so a missing dependency fails before any write.
package reconcile

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/openfroyo/zbxsync/pkg/engine"
	"github.com/openfroyo/zbxsync/pkg/rpc"
)

// Kind adapts one resource kind to Ensure. D is the desired payload, R the live object.
type Kind[D, R any] interface {
	// Name is the kind name used in step ids, logs and metrics.
	Name() string

	// Key returns the natural key of d.
	Key(d D) string

	// Lookup fetches the live object by natural key.
	Lookup(ctx context.Context, c rpc.Caller, d D) (R, bool, error)

	// ID returns the system id of a live object.
	ID(r R) string

	// Create creates d and returns its id.
	Create(ctx context.Context, c rpc.Caller, d D) (string, error)

	// Diff lists the tracked attributes of r that differ from d.
	Diff(d D, r R) []engine.Change

	// Update sends the full desired payload for r.
	Update(ctx context.Context, c rpc.Caller, d D, r R) error
}

// Healer is implemented by kinds that recover from a failed update by deleting
// the live object and creating it again.
type Healer[R any] interface {
	Delete(ctx context.Context, c rpc.Caller, r R) error
}

// Skipper is implemented by kinds that leave some live objects alone.
type Skipper[R any] interface {
	// Skip returns a reason when r must not be touched.
	Skip(r R) (string, bool)
}

// Ensure converges one resource:
//
//	absent                    -> create            (OutcomeCreate)
//	present, no tracked diff  -> nothing           (OutcomeNoop)
//	present, diff             -> one full update   (OutcomeUpdate)
//	update failed, Healer     -> delete and create (OutcomeRecreate)
func Ensure[D, R any](ctx context.Context, c rpc.Caller, k Kind[D, R], d D) (engine.StepResult, error) {
	res := engine.StepResult{Kind: k.Name(), Key: k.Key(d)}

	live, found, err := k.Lookup(ctx, c, d)
	if err != nil {
		return res, wrap(err, res)
	}

	if !found {
		id, err := k.Create(ctx, c, d)
		if err != nil {
			return res, wrap(err, res)
		}
		res.ID = id
		res.Outcome = engine.OutcomeCreate
		return res, nil
	}

	res.ID = k.ID(live)
	if s, ok := k.(Skipper[R]); ok {
		if reason, skip := s.Skip(live); skip {
			res.Outcome = engine.OutcomeNoop
			res.Message = reason
			return res, nil
		}
	}

	res.Changes = k.Diff(d, live)
	if len(res.Changes) == 0 {
		res.Outcome = engine.OutcomeNoop
		return res, nil
	}

	err = k.Update(ctx, c, d, live)
	if err == nil {
		res.Outcome = engine.OutcomeUpdate
		return res, nil
	}

	h, ok := k.(Healer[R])
	if !ok {
		return res, wrap(err, res)
	}

	zerolog.Ctx(ctx).Warn().Err(err).
		Str("kind", res.Kind).
		Str("key", res.Key).
		Str("id", res.ID).
		Msg("Update failed, recreating")

	if derr := h.Delete(ctx, c, live); derr != nil {
		return res, wrap(derr, res)
	}
	id, cerr := k.Create(ctx, c, d)
	if cerr != nil {
		return res, wrap(cerr, res)
	}
	res.ID = id
	res.Outcome = engine.OutcomeRecreate
	res.Message = "update failed: " + err.Error()
	return res, nil
}

// wrap attaches the resource to engine errors that do not name one yet.
func wrap(err error, res engine.StepResult) error {
	var ee *engine.EngineError
	if errors.As(err, &ee) && ee.Resource == "" {
		ee.WithResource(engine.StepID(res.Kind, res.Key))
	}
	return err
}
