package title

// Registry hands out short unique view titles.
type Registry struct {
	titles map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{titles: make(map[string]struct{})}
}

// Allocate returns the first free title reached from "A" and marks it used,
// so freed titles are reused smallest first.
func (r *Registry) Allocate() string {
	title := []byte("A")
	for r.has(string(title)) {
		title = successor(title)
	}
	r.titles[string(title)] = struct{}{}
	return string(title)
}

// successor advances an odometer whose least significant letter is first.
// A carry out of the last position appends a fresh 'A' instead of wrapping,
// giving A..Z, AA, BA, ..., ZA, AB, ..., ZZ, AAA.
func successor(title []byte) []byte {
	for i := 0; ; i++ {
		title[i]++
		if title[i] <= 'Z' {
			return title
		}
		title[i] = 'A'
		if i+1 == len(title) {
			return append(title, 'A')
		}
	}
}

// Release frees a title. It reports false if the title was not allocated.
func (r *Registry) Release(title string) bool {
	if !r.has(title) {
		return false
	}
	delete(r.titles, title)
	return true
}

func (r *Registry) Allocated(title string) bool {
	return r.has(title)
}

func (r *Registry) Len() int {
	return len(r.titles)
}

func (r *Registry) has(title string) bool {
	_, ok := r.titles[title]
	return ok
}
