package grid

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"admin-console/pkg/client"
)

// Record mirrors a decoded API record.
type Record = client.Record

// Fetcher is the slice of the resource client the controller needs.
// *client.Client satisfies it.
type Fetcher interface {
	GetAll(ctx context.Context, params url.Values) ([]Record, error)
	Save(ctx context.Context, data Record) (Record, error)
	Remove(ctx context.Context, id int) error
}

// Relation declares a related collection to load alongside the main data,
// and the field used to label its records in lookup maps.
type Relation struct {
	Key      string
	Fetcher  Fetcher
	LabelKey string // defaults to "name"
}

// FilterFn decides whether an item satisfies the current filters.
type FilterFn func(item Record, filters map[string]any) bool

// Config drives one Controller.
type Config struct {
	Fetcher  Fetcher
	PageSize int
	// Relations are fetched once, concurrently with the main data.
	Relations []Relation
	// FilterFn replaces the default predicate when set.
	FilterFn FilterFn
	// FilterExpr is an expr-lang boolean expression over {item, filters};
	// it replaces the default predicate when set and FilterFn is nil.
	FilterExpr string
	// Transform post-processes the fetched main collection.
	Transform func([]Record) []Record
}

// Controller is the CRUD state for one entity screen: fetched data, client
// side filtering, 1-based pagination, related lookup data, and the save /
// delete handlers the grid calls back into.
type Controller struct {
	cfg      Config
	filterFn FilterFn

	loadOnce sync.Once

	mu             sync.RWMutex
	data           []Record
	related        map[string][]Record
	filters        map[string]any
	page           int
	loading        bool
	initialLoading bool
	lastErr        string
}

// NewController validates the config and compiles FilterExpr when present.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("grid: config needs a Fetcher")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}

	c := &Controller{
		cfg:            cfg,
		related:        map[string][]Record{},
		filters:        map[string]any{},
		page:           1,
		initialLoading: true,
	}

	switch {
	case cfg.FilterFn != nil:
		c.filterFn = cfg.FilterFn
	case cfg.FilterExpr != "":
		eval := NewExprEvaluator()
		// Compile eagerly so a broken expression fails construction, not
		// every later keystroke.
		if _, err := eval.EvaluateBool(cfg.FilterExpr, map[string]any{
			"item": Record{}, "filters": map[string]any{},
		}); err != nil {
			return nil, err
		}
		expr := cfg.FilterExpr
		c.filterFn = func(item Record, filters map[string]any) bool {
			ok, err := eval.EvaluateBool(expr, map[string]any{"item": item, "filters": filters})
			if err != nil {
				log.Printf("filter expression: %v", err)
				return false
			}
			return ok
		}
	default:
		c.filterFn = DefaultFilter
	}

	return c, nil
}

// Load performs the initial load: the main collection and every relation,
// concurrently, exactly once. Relation failures degrade to an empty list and
// never block the main data. Repeated calls are no-ops.
func (c *Controller) Load(ctx context.Context) error {
	var mainErr error
	c.loadOnce.Do(func() {
		var wg sync.WaitGroup

		wg.Add(1)
		go func() {
			defer wg.Done()
			mainErr = c.loadMain(ctx)
		}()

		for _, rel := range c.cfg.Relations {
			wg.Add(1)
			go func(rel Relation) {
				defer wg.Done()
				records, err := rel.Fetcher.GetAll(ctx, nil)
				if err != nil {
					log.Printf("load relation %s: %v", rel.Key, err)
					records = []Record{}
				}
				c.mu.Lock()
				c.related[rel.Key] = records
				c.mu.Unlock()
			}(rel)
		}

		wg.Wait()
		c.mu.Lock()
		c.initialLoading = false
		c.mu.Unlock()
	})
	return mainErr
}

func (c *Controller) loadMain(ctx context.Context) error {
	records, err := c.cfg.Fetcher.GetAll(ctx, nil)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err.Error()
		c.mu.Unlock()
		return err
	}
	if c.cfg.Transform != nil {
		records = c.cfg.Transform(records)
	}
	c.mu.Lock()
	c.data = records
	c.lastErr = ""
	c.mu.Unlock()
	return nil
}

// Refresh re-runs the main data load only, replacing data wholesale.
// Relations keep whatever the initial load produced.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.loadMain(ctx)
}

// Data returns the full main collection.
func (c *Controller) Data() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// Filtered returns the main collection narrowed by the current filters.
func (c *Controller) Filtered() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filteredLocked()
}

func (c *Controller) filteredLocked() []Record {
	if len(c.filters) == 0 {
		return c.data
	}
	out := make([]Record, 0, len(c.data))
	for _, item := range c.data {
		if c.filterFn(item, c.filters) {
			out = append(out, item)
		}
	}
	return out
}

// Paged returns the current page of the filtered data: the contiguous slice
// [(page-1)*pageSize, page*pageSize).
func (c *Controller) Paged() []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	filtered := c.filteredLocked()
	start := (c.page - 1) * c.cfg.PageSize
	if start >= len(filtered) {
		return []Record{}
	}
	end := start + c.cfg.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end]
}

// Related returns one relation's fetched records.
func (c *Controller) Related(key string) []Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.related[key]
}

// LookupMaps builds an id -> label map per relation, using each relation's
// label key (default "name"). Foreign-key columns render through these.
func (c *Controller) LookupMaps() map[string]map[int]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	maps := make(map[string]map[int]string, len(c.cfg.Relations))
	for _, rel := range c.cfg.Relations {
		labelKey := rel.LabelKey
		if labelKey == "" {
			labelKey = "name"
		}
		m := map[int]string{}
		for _, rec := range c.related[rel.Key] {
			label, _ := rec[labelKey].(string)
			m[toInt(rec["id"])] = label
		}
		maps[rel.Key] = m
	}
	return maps
}

// Filters returns a copy of the current filter values.
func (c *Controller) Filters() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.filters))
	for k, v := range c.filters {
		out[k] = v
	}
	return out
}

// SetFilter sets one filter value and resets pagination to page 1.
func (c *Controller) SetFilter(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters[key] = value
	c.page = 1
}

// SetFilters replaces the filter values and resets pagination to page 1.
func (c *Controller) SetFilters(filters map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = make(map[string]any, len(filters))
	for k, v := range filters {
		c.filters[k] = v
	}
	c.page = 1
}

// ClearFilters drops every filter and resets pagination.
func (c *Controller) ClearFilters() {
	c.SetFilters(nil)
}

// Page returns the current 1-based page.
func (c *Controller) Page() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.page
}

// SetPage moves to a page; values below 1 clamp to 1.
func (c *Controller) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	c.page = page
	c.mu.Unlock()
}

// TotalPages is ceil(filtered/pageSize), never less than 1.
func (c *Controller) TotalPages() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	filtered := len(c.filteredLocked())
	pages := (filtered + c.cfg.PageSize - 1) / c.cfg.PageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// Pagination bundles the page state handed to the grid.
type Pagination struct {
	Page       int
	TotalPages int
}

func (c *Controller) Pagination() Pagination {
	return Pagination{Page: c.Page(), TotalPages: c.TotalPages()}
}

// PageSize returns the configured page size.
func (c *Controller) PageSize() int {
	return c.cfg.PageSize
}

// Loading reports an in-flight save/delete/refresh.
func (c *Controller) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// InitialLoading is true until the first Load settles.
func (c *Controller) InitialLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialLoading
}

// Err returns the last load error message.
func (c *Controller) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

func (c *Controller) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
}

// Save persists an item. On success a record with an id replaces its
// predecessor in the collection, a new record is appended. Failures
// propagate so the edit dialog can stay open.
func (c *Controller) Save(ctx context.Context, item Record) (Record, error) {
	c.setLoading(true)
	defer c.setLoading(false)

	hadID := isNumber(item["id"]) && toInt(item["id"]) != 0

	saved, err := c.cfg.Fetcher.Save(ctx, item)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if hadID {
		id := toInt(saved["id"])
		for i, rec := range c.data {
			if toInt(rec["id"]) == id {
				c.data[i] = saved
				break
			}
		}
	} else {
		c.data = append(c.data, saved)
	}
	return saved, nil
}

// Delete removes an item. On success the record leaves the collection; on
// failure it stays and the error is returned for the grid's close policy —
// the client has already notified the user.
func (c *Controller) Delete(ctx context.Context, item Record) error {
	c.setLoading(true)
	defer c.setLoading(false)

	id := toInt(item["id"])
	if err := c.cfg.Fetcher.Remove(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := make([]Record, 0, len(c.data))
	for _, rec := range c.data {
		if toInt(rec["id"]) == id {
			continue
		}
		kept = append(kept, rec)
	}
	c.data = kept
	return nil
}

// DefaultFilter is the predicate used when the config declares none: an
// empty filter value always passes; strings match by case-insensitive
// substring; numbers by stringified equality; arrays by membership;
// everything else by stringified equality.
func DefaultFilter(item Record, filters map[string]any) bool {
	for key, want := range filters {
		if emptyFilterValue(want) {
			continue
		}
		value := item[key]

		if s, ok := value.(string); ok {
			if w, ok := want.(string); ok {
				if !strings.Contains(strings.ToLower(s), strings.ToLower(w)) {
					return false
				}
				continue
			}
		}

		if isNumber(value) {
			if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", want) && !looseEqual(value, want) {
				return false
			}
			continue
		}

		if list, ok := value.([]any); ok {
			matched := false
			for _, item := range list {
				if looseEqual(item, want) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}

		if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}
