package audience

import (
	"strings"
	"sync"

	"bcast/internal/model"
)

// Resolve filters pool by f. It is the pure, allocation-light path used by
// tests and one-shot callers; interactive callers should prefer Resolver.
func Resolve(pool []model.Contact, f model.FilterSnapshot) []model.Contact {
	if f.Empty() {
		return append([]model.Contact(nil), pool...)
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]model.Contact, 0, len(pool)/4+1)
	for i := range pool {
		c := &pool[i]
		if !matchesCategories(c, f.CategoryIDs) {
			continue
		}
		if search != "" && !matchesSearchSlow(c, search) {
			continue
		}
		out = append(out, *c)
	}
	return out
}

func matchesCategories(c *model.Contact, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, want := range categories {
		for _, have := range c.CategoryIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}

func matchesSearchSlow(c *model.Contact, lowered string) bool {
	return strings.Contains(strings.ToLower(c.Name), lowered) ||
		strings.Contains(strings.ToLower(c.Phone), lowered) ||
		strings.Contains(strings.ToLower(c.Email), lowered)
}

// Resolver memoizes the lower-cased corpus of the current pool.
//
// SetPool rebuilds the corpus; Resolve then runs without per-contact
// ToLower work. The zero value is usable (empty pool).
type Resolver struct {
	mu     sync.Mutex
	pool   []model.Contact
	corpus []string // lowered "name\x00phone\x00email" per contact
}

func NewResolver() *Resolver { return &Resolver{} }

// SetPool replaces the contact pool and rebuilds the search corpus.
// The pool is copied; later mutation by the caller does not affect the
// resolver.
func (r *Resolver) SetPool(pool []model.Contact) {
	cp := append([]model.Contact(nil), pool...)
	corpus := make([]string, len(cp))
	for i := range cp {
		corpus[i] = strings.ToLower(cp[i].Name) + "\x00" +
			strings.ToLower(cp[i].Phone) + "\x00" +
			strings.ToLower(cp[i].Email)
	}
	r.mu.Lock()
	r.pool = cp
	r.corpus = corpus
	r.mu.Unlock()
}

// Size returns the current pool size.
func (r *Resolver) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pool)
}

// Resolve returns the contacts matching f, in pool order.
func (r *Resolver) Resolve(f model.FilterSnapshot) []model.Contact {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f.Empty() {
		return append([]model.Contact(nil), r.pool...)
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]model.Contact, 0, len(r.pool)/4+1)
	for i := range r.pool {
		if !matchesCategories(&r.pool[i], f.CategoryIDs) {
			continue
		}
		if search != "" && !strings.Contains(r.corpus[i], search) {
			continue
		}
		out = append(out, r.pool[i])
	}
	return out
}

// Count is Resolve without materializing the subset.
func (r *Resolver) Count(f model.FilterSnapshot) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f.Empty() {
		return len(r.pool)
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	n := 0
	for i := range r.pool {
		if !matchesCategories(&r.pool[i], f.CategoryIDs) {
			continue
		}
		if search != "" && !strings.Contains(r.corpus[i], search) {
			continue
		}
		n++
	}
	return n
}
