// Package filter keeps the ledger's filter state, its URL query string and
// the filter form consistent.
//
// The query string is canonical. It is written only through Submit, Clear
// and Paginate; everything else (the fetch key, the form defaults, the
// upstream query) is derived from it on read.
package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/query"
)

// Query string parameters of the ledger view.
const (
	ParamInitialDate = "initialDate"
	ParamEndDate     = "endDate"
	ParamCategoryID  = "categoryId"
	ParamPage        = "page"

	// legacyParamPage is read as an alias of page (also 1-based) and
	// replaced by page on the next write.
	legacyParamPage = "pageIndex"
)

// ResourceTransactions is the query key tag of ledger reads.
const ResourceTransactions = "transactions"

// State is the derived filter state. PageIndex is zero-based.
type State struct {
	InitialDate time.Time
	EndDate     time.Time
	CategoryID  string
	PageIndex   int
}

// Query renders the state as the upstream list query.
func (s State) Query() domain.TransactionQuery {
	return domain.TransactionQuery{
		InitialDate: s.InitialDate.Format(domain.DateLayout),
		EndDate:     s.EndDate.Format(domain.DateLayout),
		CategoryID:  s.CategoryID,
		PageIndex:   s.PageIndex,
	}
}

// Key is the fetch key of the state: the resource tag followed by every
// filter field, page index included.
func (s State) Key() query.Key {
	return query.Key{
		ResourceTransactions,
		s.InitialDate.Format(domain.DateLayout),
		s.EndDate.Format(domain.DateLayout),
		s.CategoryID,
		strconv.Itoa(s.PageIndex),
	}
}

// StateFromKey decodes a key built by State.Key. Dates are read in loc.
func StateFromKey(key query.Key, loc *time.Location) (State, error) {
	if len(key) != 5 || key.Resource() != ResourceTransactions {
		return State{}, fmt.Errorf("not a ledger key: %q", []string(key))
	}
	if loc == nil {
		loc = time.Local
	}

	initial, ok := parseDate(key[1], loc)
	if !ok {
		return State{}, fmt.Errorf("ledger key: bad initial date %q", key[1])
	}
	end, ok := parseDate(key[2], loc)
	if !ok {
		return State{}, fmt.Errorf("ledger key: bad end date %q", key[2])
	}
	idx, err := strconv.Atoi(key[4])
	if err != nil || idx < 0 {
		return State{}, fmt.Errorf("ledger key: bad page index %q", key[4])
	}
	return State{InitialDate: initial, EndDate: end, CategoryID: key[3], PageIndex: idx}, nil
}

// Input is the filter form. Empty strings mean "not set".
type Input struct {
	InitialDate string `json:"initialDate"`
	EndDate     string `json:"endDate"`
	CategoryID  string `json:"categoryId"`
}

// Options configures a Synchronizer.
type Options struct {
	// Now is the wall clock used for the current-month defaults.
	Now func() time.Time
	// Location is the calendar used for month bounds. Defaults to time.Local.
	Location *time.Location
}

// Synchronizer is the single writer of the ledger query string.
type Synchronizer struct {
	mu     sync.Mutex
	values url.Values
	form   Input
	now    func() time.Time
	loc    *time.Location

	subs   map[int]func(State)
	nextID int
}

// New loads the synchronizer from a raw query string. Unknown parameters
// are dropped; malformed pairs are ignored.
func New(rawQuery string, opts Options) *Synchronizer {
	s := &Synchronizer{
		values: url.Values{},
		now:    opts.Now,
		loc:    opts.Location,
		subs:   make(map[int]func(State)),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}

	parsed, _ := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	for _, name := range []string{ParamInitialDate, ParamEndDate, ParamCategoryID, ParamPage} {
		if v := parsed.Get(name); v != "" {
			s.values.Set(name, v)
		}
	}
	if s.values.Get(ParamPage) == "" {
		if v := parsed.Get(legacyParamPage); v != "" {
			s.values.Set(ParamPage, v)
		}
	}

	s.form = s.formFromValues()
	return s
}

// State derives the filter state from the query string. Missing or
// unparseable dates fall back to the current month's bounds; a page that
// is not a positive integer counts as the first page.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Synchronizer) state() State {
	first, last := s.monthBounds()

	st := State{
		InitialDate: first,
		EndDate:     last,
		CategoryID:  s.values.Get(ParamCategoryID),
	}
	if d, ok := parseDate(s.values.Get(ParamInitialDate), s.loc); ok {
		st.InitialDate = d
	}
	if d, ok := parseDate(s.values.Get(ParamEndDate), s.loc); ok {
		st.EndDate = d
	}
	if page, err := strconv.Atoi(s.values.Get(ParamPage)); err == nil && page > 0 {
		st.PageIndex = page - 1
	}
	return st
}

// Key is shorthand for State().Key().
func (s *Synchronizer) Key() query.Key {
	return s.State().Key()
}

// Form returns the filter form as currently shown.
func (s *Synchronizer) Form() Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

// Values returns a copy of the query string parameters.
func (s *Synchronizer) Values() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(url.Values, len(s.values))
	for k, v := range s.values {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Encode renders the query string in canonical (sorted) order.
func (s *Synchronizer) Encode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.Encode()
}

// Submit applies the filter form. Dates must be YYYY-MM-DD (or RFC 3339) or
// empty. On success every non-empty field is written, emptied fields are
// removed and the page goes back to 1. On failure the query string is left
// untouched, the form keeps the rejected input and the returned
// *domain.ErrValidation names the offending fields.
func (s *Synchronizer) Submit(in Input) error {
	in = Input{
		InitialDate: strings.TrimSpace(in.InitialDate),
		EndDate:     strings.TrimSpace(in.EndDate),
		CategoryID:  strings.TrimSpace(in.CategoryID),
	}

	verr := &domain.ErrValidation{}
	initial, initialOK := parseDate(in.InitialDate, s.loc)
	if in.InitialDate != "" && !initialOK {
		verr.Add(ParamInitialDate, "Data inicial inválida")
	}
	end, endOK := parseDate(in.EndDate, s.loc)
	if in.EndDate != "" && !endOK {
		verr.Add(ParamEndDate, "Data final inválida")
	}

	s.mu.Lock()
	if err := verr.OrNil(); err != nil {
		s.form = in
		s.mu.Unlock()
		return err
	}

	setOrDelete(s.values, ParamInitialDate, initial, initialOK)
	setOrDelete(s.values, ParamEndDate, end, endOK)
	if in.CategoryID != "" {
		s.values.Set(ParamCategoryID, in.CategoryID)
	} else {
		s.values.Del(ParamCategoryID)
	}
	s.values.Set(ParamPage, "1")
	s.form = s.formFromValues()
	st := s.state()
	subs := s.subscribers()
	s.mu.Unlock()

	publish(subs, st)
	return nil
}

// Clear resets the dates to the current month, drops the category, goes
// back to page 1 and resets the form. Calling it twice yields the same
// query string.
func (s *Synchronizer) Clear() {
	s.mu.Lock()
	first, last := s.monthBounds()
	s.values = url.Values{}
	s.values.Set(ParamInitialDate, first.Format(domain.DateLayout))
	s.values.Set(ParamEndDate, last.Format(domain.DateLayout))
	s.values.Set(ParamPage, "1")
	s.form = s.formFromValues()
	st := s.state()
	subs := s.subscribers()
	s.mu.Unlock()

	publish(subs, st)
}

// Paginate moves to the zero-based page index. No other field changes.
func (s *Synchronizer) Paginate(pageIndex int) error {
	if pageIndex < 0 {
		return domain.NewValidation("pageIndex", "Página inválida")
	}

	s.mu.Lock()
	s.values.Set(ParamPage, strconv.Itoa(pageIndex+1))
	st := s.state()
	subs := s.subscribers()
	s.mu.Unlock()

	publish(subs, st)
	return nil
}

// Subscribe registers fn to run after every successful mutation.
// The returned func unsubscribes.
func (s *Synchronizer) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Synchronizer) subscribers() []func(State) {
	out := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func publish(subs []func(State), st State) {
	for _, fn := range subs {
		fn(st)
	}
}

// formFromValues mirrors the query string into the form.
func (s *Synchronizer) formFromValues() Input {
	return Input{
		InitialDate: s.values.Get(ParamInitialDate),
		EndDate:     s.values.Get(ParamEndDate),
		CategoryID:  s.values.Get(ParamCategoryID),
	}
}

// monthBounds returns the first and last calendar day of the current month.
func (s *Synchronizer) monthBounds() (time.Time, time.Time) {
	return MonthBounds(s.now().In(s.loc))
}

// MonthBounds returns the first and last calendar day of t's month, at
// midnight in t's location.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1)
	return first, last
}

func setOrDelete(v url.Values, name string, d time.Time, ok bool) {
	if ok {
		v.Set(name, d.Format(domain.DateLayout))
		return
	}
	v.Del(name)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp and returns
// the calendar date in loc.
func parseDate(raw string, loc *time.Location) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	if d, err := time.ParseInLocation(domain.DateLayout, raw, loc); err == nil {
		return d, true
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		ts = ts.In(loc)
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc), true
	}
	return time.Time{}, false
}
