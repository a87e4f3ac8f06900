package deepresearch

// stringSet keeps first-seen insertion order so reports are reproducible.
type stringSet struct {
	order []string
	seen  map[string]struct{}
}

func newStringSet(values ...string) *stringSet {
	s := &stringSet{seen: make(map[string]struct{}, len(values))}
	s.AddAll(values)
	return s
}

func (s *stringSet) Add(value string) {
	if value == "" {
		return
	}
	if _, ok := s.seen[value]; ok {
		return
	}
	s.seen[value] = struct{}{}
	s.order = append(s.order, value)
}

func (s *stringSet) AddAll(values []string) {
	for _, v := range values {
		s.Add(v)
	}
}

func (s *stringSet) Union(other *stringSet) {
	if other == nil {
		return
	}
	s.AddAll(other.order)
}

func (s *stringSet) Clone() *stringSet {
	return newStringSet(s.order...)
}

func (s *stringSet) Values() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *stringSet) Len() int { return len(s.order) }
