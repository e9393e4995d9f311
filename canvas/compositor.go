package canvas

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/paintshot/hexcolor"
)

// Compositor paints shot impacts onto per-(user, level) canvases.
//
// Paint serializes itself per (user, level): the load-draw-save sequence
// runs under a canvas-keyed mutex, so two concurrent shots at the same
// canvas apply one after the other and neither overwrites the other's
// paint. Shots at different canvases proceed in parallel.
type Compositor struct {
	store  Store
	width  int
	height int
	logger *slog.Logger

	mu    sync.Mutex
	locks map[canvasKey]*sync.Mutex
}

type canvasKey struct {
	userID int64
	level  int64
}

// NewCompositor creates a compositor producing canvases of the given
// fixed dimensions.
func NewCompositor(store Store, width, height int, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{
		store:  store,
		width:  width,
		height: height,
		logger: logger,
		locks:  make(map[canvasKey]*sync.Mutex),
	}
}

// lock returns the mutex guarding one canvas, creating it on first use.
// Lock records are kept for the compositor's lifetime; the population is
// bounded by the number of (user, level) pairs ever painted.
func (c *Compositor) lock(userID, level int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := canvasKey{userID: userID, level: level}
	l := c.locks[k]
	if l == nil {
		l = &sync.Mutex{}
		c.locks[k] = l
	}
	return l
}

// DiscRadius is the paint mark radius for a shot of n colors: bigger
// shots leave bigger marks, discounted by a fixed offset.
func DiscRadius(n int) int {
	if n-3 < 1 {
		return 1
	}
	return n - 3
}

// Paint blends the shot's colors, draws the impact disc at (x, y) on the
// (user, level) canvas, persists it, and returns the updated PNG bytes.
// A first shot on a level starts from a blank white canvas.
func (c *Compositor) Paint(userID, level int64, x, y float64, colors []string) ([]byte, error) {
	mixed, err := hexcolor.Mix(colors)
	if err != nil {
		return nil, err
	}

	l := c.lock(userID, level)
	l.Lock()
	defer l.Unlock()

	ra, err := c.store.Load(userID, level)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		ra = NewBlank(c.width, c.height)
	default:
		return nil, err
	}
	if ra.Width() != c.width || ra.Height() != c.height {
		return nil, fmt.Errorf("canvas: stored canvas is %dx%d, configured %dx%d",
			ra.Width(), ra.Height(), c.width, c.height)
	}

	radius := DiscRadius(len(colors))
	ra.DrawDisc(x, y, radius, mixed)

	if err := c.store.Save(userID, level, ra); err != nil {
		return nil, err
	}
	c.logger.Debug("canvas: painted",
		"user_id", userID, "level", level,
		"x", x, "y", y, "radius", radius, "color", hexcolor.Format(mixed))

	return ra.PNG()
}
