// Package scoring compares a user's canvas against a level's reference
// raster pixel by pixel and produces a similarity score.
//
// The full-canvas scan is the most CPU-intensive operation in the pipeline
// and is meant to run on the schedule coordinator's worker pool, never on
// the request path. Compute is safe for concurrent use across users.
package scoring

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hazyhaar/paintshot/canvas"
)

// maxPixelDiff is the largest possible per-pixel channel difference sum:
// 3 channels × 255. An exact color match contributes the full amount, a
// maximally wrong color contributes zero.
const maxPixelDiff = 765

// scoreScale normalizes the accumulated pixel total into the stored score.
const scoreScale = 1000

// ScoreWriter persists computed scores. *store.Store satisfies it.
type ScoreWriter interface {
	SetScore(ctx context.Context, userID, level int64, score float64) error
}

// Engine computes similarity scores. Reference rasters are cached for the
// engine's lifetime: reference images are immutable per level, so a cache
// entry is never invalidated.
type Engine struct {
	rasters canvas.Store
	writer  ScoreWriter

	mu   sync.RWMutex
	refs map[int64]*canvas.Raster
	sf   singleflight.Group
}

// New creates a scoring engine reading rasters from rasters and persisting
// scores through writer.
func New(rasters canvas.Store, writer ScoreWriter) *Engine {
	return &Engine{
		rasters: rasters,
		writer:  writer,
		refs:    make(map[int64]*canvas.Raster),
	}
}

// Compute scores the user's current canvas against the level reference
// without persisting the result. Scoring an untouched (all-white) canvas
// yields zero: unpainted pixels are excluded by the skip rules.
func (e *Engine) Compute(ctx context.Context, userID, level int64) (float64, error) {
	ref, err := e.reference(level)
	if err != nil {
		return 0, err
	}
	cv, err := e.rasters.Load(userID, level)
	if err != nil {
		return 0, fmt.Errorf("scoring: user %d level %d: %w", userID, level, err)
	}
	if cv.Width() != ref.Width() || cv.Height() != ref.Height() {
		return 0, fmt.Errorf("scoring: canvas %dx%d does not match reference %dx%d for level %d",
			cv.Width(), cv.Height(), ref.Width(), ref.Height(), level)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return score(ref.Pix(), cv.Pix()), nil
}

// ComputeAndStore computes the score and overwrites the stored value for
// (user, level).
func (e *Engine) ComputeAndStore(ctx context.Context, userID, level int64) (float64, error) {
	s, err := e.Compute(ctx, userID, level)
	if err != nil {
		return 0, err
	}
	if err := e.writer.SetScore(ctx, userID, level, s); err != nil {
		return 0, err
	}
	return s, nil
}

// reference returns the cached reference raster for level, loading it on
// first use. Concurrent first loads for the same level collapse into one
// read; all callers share the single cached value.
func (e *Engine) reference(level int64) (*canvas.Raster, error) {
	e.mu.RLock()
	ref, ok := e.refs[level]
	e.mu.RUnlock()
	if ok {
		return ref, nil
	}

	v, err, _ := e.sf.Do(strconv.FormatInt(level, 10), func() (any, error) {
		ra, err := e.rasters.LoadReference(level)
		if err != nil {
			return nil, fmt.Errorf("scoring: reference for level %d: %w", level, err)
		}
		e.mu.Lock()
		e.refs[level] = ra
		e.mu.Unlock()
		return ra, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*canvas.Raster), nil
}

// score runs the pixel scan. Both buffers are RGBA, 4 bytes per pixel.
//
// A pixel is skipped when the reference is fully transparent there, when
// either side is opaque white in all three channels, or when the canvas
// pixel has zero alpha; background and unpainted areas contribute
// nothing. Every scored pixel adds the inverse of its summed channel
// difference.
func score(ref, cv []uint8) float64 {
	var total int64
	for i := 0; i+3 < len(ref); i += 4 {
		ra := ref[i+3]
		if ra == 0 {
			continue
		}
		rr, rg, rb := ref[i], ref[i+1], ref[i+2]
		if rr == 255 && rg == 255 && rb == 255 {
			continue
		}
		ca := cv[i+3]
		if ca == 0 {
			continue
		}
		cr, cg, cb := cv[i], cv[i+1], cv[i+2]
		if cr == 255 && cg == 255 && cb == 255 {
			continue
		}

		diff := absDiff(rr, cr) + absDiff(rg, cg) + absDiff(rb, cb)
		total += maxPixelDiff - int64(diff)
	}
	return float64(total) / scoreScale
}

func absDiff(a, b uint8) int64 {
	if a > b {
		return int64(a - b)
	}
	return int64(b - a)
}
