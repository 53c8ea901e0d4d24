package audience

import (
	"fmt"
	"testing"

	"bcast/internal/model"
)

func testPool() []model.Contact {
	return []model.Contact{
		{ID: "c1", Name: "John Kamau", Phone: "+254700000001", Email: "john@x.co", CategoryIDs: []string{"A"}},
		{ID: "c2", Name: "Mary Wanjiru", Phone: "+254700000002", Email: "mary@x.co", CategoryIDs: []string{"B"}},
		{ID: "c3", Name: "Johnson Otieno", Phone: "+254700000003", Email: "jo@x.co", CategoryIDs: []string{"C"}},
		{ID: "c4", Name: "Alice Njeri", Phone: "+254700000004", Email: "alice@x.co", CategoryIDs: []string{"A", "B"}},
		{ID: "c5", Name: "Peter John", Phone: "+254700000005", Email: "pj@x.co"},
	}
}

func ids(cs []model.Contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestResolveComposition(t *testing.T) {
	t.Parallel()
	pool := testPool()
	tests := []struct {
		name   string
		filter model.FilterSnapshot
		want   []string
	}{
		{name: "no filters returns full pool", filter: model.FilterSnapshot{}, want: []string{"c1", "c2", "c3", "c4", "c5"}},
		{name: "single category", filter: model.FilterSnapshot{CategoryIDs: []string{"A"}}, want: []string{"c1", "c4"}},
		{name: "categories are OR", filter: model.FilterSnapshot{CategoryIDs: []string{"A", "B"}}, want: []string{"c1", "c2", "c4"}},
		{name: "search alone", filter: model.FilterSnapshot{Search: "john"}, want: []string{"c1", "c3", "c5"}},
		{name: "search is case-insensitive", filter: model.FilterSnapshot{Search: "JOHN"}, want: []string{"c1", "c3", "c5"}},
		{name: "search matches phone", filter: model.FilterSnapshot{Search: "000003"}, want: []string{"c3"}},
		{name: "search matches email", filter: model.FilterSnapshot{Search: "mary@"}, want: []string{"c2"}},
		{name: "search AND categories", filter: model.FilterSnapshot{Search: "john", CategoryIDs: []string{"A", "B"}}, want: []string{"c1"}},
		{name: "nothing matches", filter: model.FilterSnapshot{Search: "zebra"}, want: []string{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Resolve(pool, tt.filter))
			if len(got) != len(tt.want) {
				t.Fatalf("Resolve() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Resolve() = %v, want %v", got, tt.want)
				}
			}

			// The memoized resolver must agree with the pure function.
			r := NewResolver()
			r.SetPool(pool)
			got2 := ids(r.Resolve(tt.filter))
			if len(got2) != len(tt.want) {
				t.Fatalf("Resolver.Resolve() = %v, want %v", got2, tt.want)
			}
			if n := r.Count(tt.filter); n != len(tt.want) {
				t.Fatalf("Resolver.Count() = %d, want %d", n, len(tt.want))
			}
		})
	}
}

func TestResolverPoolIsolation(t *testing.T) {
	t.Parallel()
	pool := testPool()
	r := NewResolver()
	r.SetPool(pool)

	// Mutating the caller's slice must not leak into the resolver.
	pool[0].Name = "Changed"
	got := r.Resolve(model.FilterSnapshot{Search: "kamau"})
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("expected c1 via original name, got %v", ids(got))
	}
}

func TestResolverLargePool(t *testing.T) {
	t.Parallel()
	pool := make([]model.Contact, 0, 20000)
	for i := 0; i < 20000; i++ {
		pool = append(pool, model.Contact{
			ID:    fmt.Sprintf("c%d", i),
			Name:  fmt.Sprintf("Contact %d", i),
			Phone: fmt.Sprintf("+2547%08d", i),
		})
	}
	r := NewResolver()
	r.SetPool(pool)
	if n := r.Count(model.FilterSnapshot{Search: "contact 1999"}); n != 11 {
		// 1999 and 19990..19999
		t.Fatalf("Count = %d, want 11", n)
	}
}
