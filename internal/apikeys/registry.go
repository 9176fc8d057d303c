package apikeys

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/searchapi-console/internal/client"
	"github.com/searchapi-console/internal/model"
	"github.com/searchapi-console/internal/validation"
)

const DefaultPageSize = 5

// maskedToken is shown in place of a hidden token. Its length does not
// depend on the token.
const maskedToken = "••••••••••••••••••••••••••••••••"

// ErrStale is returned when a fetch resolved after the session it was
// issued under ended. The result was discarded.
var ErrStale = errors.New("result discarded: session changed")

// Transport is the subset of the API client the registry needs.
type Transport interface {
	ListAPIKeys(ctx context.Context) ([]model.APIKey, error)
	CreateAPIKey(ctx context.Context, name string) (*model.APIKey, error)
	DeleteAPIKey(ctx context.Context, id int64) error
}

// SessionGuard identifies the live session. *session.Controller
// satisfies it.
type SessionGuard interface {
	Guard() uint64
	Current(gen uint64) bool
}

type StatusFilter string

const (
	FilterAll      StatusFilter = "all"
	FilterActive   StatusFilter = "active"
	FilterInactive StatusFilter = "inactive"
)

// ParseStatusFilter accepts all, active or inactive. Empty means all.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterActive, FilterInactive:
		return f, nil
	default:
		return "", fmt.Errorf("status must be one of all, active, inactive, got %q", s)
	}
}

func (f StatusFilter) matches(k model.APIKey) bool {
	return f == FilterAll || model.APIKeyStatus(f) == k.Status()
}

// View is one page of the filtered key list.
type View struct {
	Items      []model.APIKey `json:"items"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
	Filtered   int            `json:"filtered"`
	Total      int            `json:"total"`
}

// Stats summarizes the whole list, ignoring filters.
type Stats struct {
	TotalKeys     int   `json:"total_keys"`
	ActiveKeys    int   `json:"active_keys"`
	TotalRequests int64 `json:"total_requests"`
}

// Registry holds the user's API keys, newest first, plus the local
// filter, page and visibility state used to present them. The server
// is the source of truth: the list only changes after a call succeeds.
type Registry struct {
	transport Transport
	guard     SessionGuard
	pageSize  int

	mu        sync.Mutex
	keys      []model.APIKey
	loaded    bool
	loadedGen uint64
	query     string
	status    StatusFilter
	page      int
	visible   map[int64]bool
}

// New creates a registry. guard may be nil, in which case results are
// never discarded as stale.
func New(transport Transport, guard SessionGuard, pageSize int) *Registry {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Registry{
		transport: transport,
		guard:     guard,
		pageSize:  pageSize,
		status:    FilterAll,
		page:      1,
		visible:   make(map[int64]bool),
	}
}

func (r *Registry) generation() uint64 {
	if r.guard == nil {
		return 0
	}
	return r.guard.Guard()
}

func (r *Registry) current(gen uint64) bool {
	return r.guard == nil || r.guard.Current(gen)
}

// Refresh replaces the list with the server's.
func (r *Registry) Refresh(ctx context.Context) error {
	gen := r.generation()
	keys, err := r.transport.ListAPIKeys(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.current(gen) {
		log.Debug().Msg("discarding api key list from a previous session")
		return ErrStale
	}

	sortNewestFirst(keys)
	r.keys = keys
	r.loaded = true
	r.loadedGen = gen

	ids := make(map[int64]struct{}, len(keys))
	for _, k := range keys {
		ids[k.ID] = struct{}{}
	}
	for id := range r.visible {
		if _, ok := ids[id]; !ok {
			delete(r.visible, id)
		}
	}
	return nil
}

// Loaded reports whether the list reflects a fetch made under the live
// session.
func (r *Registry) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded && r.current(r.loadedGen)
}

// Create asks the server for a new key and prepends it. Empty or
// whitespace-only names are rejected without a network call.
func (r *Registry) Create(ctx context.Context, name string) (*model.APIKey, error) {
	name, err := validation.KeyName(name)
	if err != nil {
		return nil, client.NewValidation(err.Error())
	}

	gen := r.generation()
	key, err := r.transport.CreateAPIKey(ctx, name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.current(gen) {
		return nil, ErrStale
	}
	r.dropStaleLocked()
	r.keys = slices.Insert(r.keys, 0, *key)
	return key, nil
}

// Remove deletes a key on the server, then drops it from the list. A
// failed delete leaves the list untouched.
func (r *Registry) Remove(ctx context.Context, id int64) error {
	gen := r.generation()
	if err := r.transport.DeleteAPIKey(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.current(gen) {
		return ErrStale
	}
	r.dropStaleLocked()
	r.keys = slices.DeleteFunc(r.keys, func(k model.APIKey) bool { return k.ID == id })
	delete(r.visible, id)
	return nil
}

func (r *Registry) SetQuery(q string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.query = strings.TrimSpace(q)
}

func (r *Registry) SetStatusFilter(f StatusFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = f
}

// SetPage selects a 1-indexed page. Out-of-range pages are clamped when
// the view is built.
func (r *Registry) SetPage(page int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.page = max(page, 1)
}

// Filter selects one page of the list. Zero values mean no query, all
// statuses and page 1.
type Filter struct {
	Query  string
	Status StatusFilter
	Page   int
}

// View filters by query, then by status, then paginates. The page is
// clamped to the last non-empty page, and the clamp sticks.
func (r *Registry) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.viewLocked(Filter{Query: r.query, Status: r.status, Page: r.page})
	r.page = v.Page
	return v
}

// ViewOf builds the view for f under a single lock without touching the
// registry's own query, filter or page. Concurrent callers with
// different filters do not see each other's selections.
func (r *Registry) ViewOf(f Filter) View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked(f)
}

func (r *Registry) viewLocked(f Filter) View {
	keys := r.liveKeysLocked()
	q := strings.ToLower(strings.TrimSpace(f.Query))
	status := f.Status
	if status == "" {
		status = FilterAll
	}

	filtered := make([]model.APIKey, 0, len(keys))
	for _, k := range keys {
		if q != "" && !strings.Contains(strings.ToLower(k.Name), q) && !strings.Contains(strings.ToLower(k.Token), q) {
			continue
		}
		if !status.matches(k) {
			continue
		}
		filtered = append(filtered, k)
	}

	totalPages := (len(filtered) + r.pageSize - 1) / r.pageSize
	page := min(max(f.Page, 1), max(totalPages, 1))

	start := min((page-1)*r.pageSize, len(filtered))
	end := min(start+r.pageSize, len(filtered))

	return View{
		Items:      slices.Clone(filtered[start:end]),
		Page:       page,
		PageSize:   r.pageSize,
		TotalPages: totalPages,
		Filtered:   len(filtered),
		Total:      len(keys),
	}
}

// Stats returns the counters shown above the key list.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var s Stats
	for _, k := range r.liveKeysLocked() {
		s.TotalKeys++
		if k.IsActive {
			s.ActiveKeys++
		}
		s.TotalRequests += k.RequestsUsed
	}
	return s
}

// Keys returns the full list, newest first.
func (r *Registry) Keys() []model.APIKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.liveKeysLocked())
}

// liveKeysLocked hides a list loaded under a session that has since
// ended.
func (r *Registry) liveKeysLocked() []model.APIKey {
	if r.loaded && !r.current(r.loadedGen) {
		return nil
	}
	return r.keys
}

func (r *Registry) dropStaleLocked() {
	if r.loaded && !r.current(r.loadedGen) {
		r.keys = nil
		r.loaded = false
		clear(r.visible)
	}
}

// ToggleVisibility flips whether id's token is shown and returns the
// new value.
func (r *Registry) ToggleVisibility(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible[id] = !r.visible[id]
	if !r.visible[id] {
		delete(r.visible, id)
		return false
	}
	return true
}

func (r *Registry) IsVisible(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible[id]
}

// DisplayToken returns the token if it is toggled visible, a mask
// otherwise.
func (r *Registry) DisplayToken(k model.APIKey) string {
	if r.IsVisible(k.ID) {
		return k.Token
	}
	return maskedToken
}

func sortNewestFirst(keys []model.APIKey) {
	slices.SortStableFunc(keys, func(a, b model.APIKey) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
