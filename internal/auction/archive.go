package auction

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Summary is what remains of a session once it has been reaped.
type Summary struct {
	Code      string
	SessionID string
	Admin     string
	Standings []Standing
	ClosedAt  time.Time
}

// archive keeps the most recently closed sessions so their results stay
// readable after the room is gone.
type archive struct {
	cache *lru.ARCCache
}

func newArchive(size int) (*archive, error) {
	c, err := lru.NewARC(size)
	if err != nil {
		return nil, fmt.Errorf("creating session archive: %w", err)
	}
	return &archive{cache: c}, nil
}

func (a *archive) put(s Summary) {
	a.cache.Add(s.Code, s)
}

func (a *archive) get(code string) (Summary, bool) {
	v, ok := a.cache.Get(code)
	if !ok {
		return Summary{}, false
	}
	return v.(Summary), true
}
