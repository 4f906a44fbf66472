// Package catalog loads and sequences the read-only pool of draftable items.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Errors describing an unusable catalog.
var (
	ErrEmpty     = errors.New("catalog has no items")
	ErrMalformed = errors.New("catalog is malformed")
)

// Error reports a catalog that cannot back an auction.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("catalog: %v", e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DefaultBasePrice is used for items that carry no base price.
var DefaultBasePrice = decimal.RequireFromString("0.2")

// NoSequence is the sequence of items whose set label carries none.
const NoSequence = 999

var setPattern = regexp.MustCompile(`L\d+S(\d+)`)

// Item is an immutable draftable unit.
type Item struct {
	ID        string
	Name      string
	Tag       string
	Role      Role
	BasePrice decimal.Decimal
	Rating    float64
	Set       string
	Sequence  int
	Country   string
}

type rawItem struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Role      string   `json:"role" yaml:"role"`
	BasePrice *float64 `json:"basePrice" yaml:"basePrice"`
	Rating    float64  `json:"rating" yaml:"rating"`
	Category  string   `json:"category" yaml:"category"`
	Country   string   `json:"country" yaml:"country"`
}

type rawCatalog struct {
	Players []rawItem `json:"players" yaml:"players"`
}

// Catalog is the full, validated item list. It is safe for concurrent reads.
type Catalog struct {
	items []Item
	byID  map[string]int
}

// Load reads a catalog file. Files ending in .yaml or .yml are parsed as
// YAML, anything else as JSON.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, &Error{Source: path, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	c, err := Parse(data, format)
	if err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			cerr.Source = path
		}
		return nil, err
	}
	return c, nil
}

// Parse decodes a catalog document in the given format ("json" or "yaml").
func Parse(data []byte, format string) (*Catalog, error) {
	var raw rawCatalog
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &raw)
	case "json":
		err = json.Unmarshal(data, &raw)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	items := make([]Item, 0, len(raw.Players))
	for i, r := range raw.Players {
		it, err := r.item(i)
		if err != nil {
			return nil, &Error{Err: err}
		}
		items = append(items, it)
	}
	return New(items)
}

func (r rawItem) item(idx int) (Item, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return Item{}, fmt.Errorf("%w: item %d has no name", ErrMalformed, idx)
	}
	if r.Rating < 0 || r.Rating > 10 || math.IsNaN(r.Rating) {
		return Item{}, fmt.Errorf("%w: item %q rating %v outside [0,10]", ErrMalformed, name, r.Rating)
	}
	base := DefaultBasePrice
	if r.BasePrice != nil {
		base = decimal.NewFromFloat(*r.BasePrice).Round(2)
		if !base.IsPositive() {
			return Item{}, fmt.Errorf("%w: item %q base price %v is not positive at cent precision", ErrMalformed, name, *r.BasePrice)
		}
	}
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = fmt.Sprintf("player-%d", idx)
	}
	return Item{
		ID:        id,
		Name:      name,
		Tag:       r.Role,
		Role:      ParseRole(r.Role),
		BasePrice: base,
		Rating:    r.Rating,
		Set:       r.Category,
		Sequence:  SequenceOf(r.Category),
		Country:   r.Country,
	}, nil
}

// New validates items and builds a Catalog ordered by category precedence
// then sequence.
func New(items []Item) (*Catalog, error) {
	if len(items) == 0 {
		return nil, &Error{Err: ErrEmpty}
	}
	c := &Catalog{
		items: make([]Item, len(items)),
		byID:  make(map[string]int, len(items)),
	}
	copy(c.items, items)
	sortItems(c.items)
	for i, it := range c.items {
		if _, dup := c.byID[it.ID]; dup {
			return nil, &Error{Err: fmt.Errorf("%w: duplicate item id %q", ErrMalformed, it.ID)}
		}
		if !it.Role.Valid() {
			return nil, &Error{Err: fmt.Errorf("%w: item %q has unknown role %q", ErrMalformed, it.ID, it.Role)}
		}
		if !it.BasePrice.Round(2).IsPositive() {
			return nil, &Error{Err: fmt.Errorf("%w: item %q base price %s is not positive", ErrMalformed, it.ID, it.BasePrice)}
		}
		c.byID[it.ID] = i
	}
	return c, nil
}

// SequenceOf extracts the in-category sequence number from a set label
// such as "L1S3".
func SequenceOf(set string) int {
	m := setPattern.FindStringSubmatch(set)
	if m == nil {
		return NoSequence
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return NoSequence
	}
	return n
}

// Len returns the number of items.
func (c *Catalog) Len() int { return len(c.items) }

// Items returns a copy of all items in offer order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Get looks up an item by id.
func (c *Catalog) Get(id string) (Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// ByRole returns the items of role r in sequence order.
func (c *Catalog) ByRole(r Role) []Item {
	var out []Item
	for _, it := range c.items {
		if it.Role == r {
			out = append(out, it)
		}
	}
	return out
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if ra, rb := a.Role.Rank(), b.Role.Rank(); ra != rb {
			return ra < rb
		}
		return a.Sequence < b.Sequence
	})
}
