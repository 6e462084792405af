package listing

import (
	"encoding/json"
	"sort"
	"strings"
)

// SkillSet is a case-insensitive set of skill names.
type SkillSet map[string]struct{}

func NewSkillSet(items ...string) SkillSet {
	s := make(SkillSet, len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

func (s SkillSet) Add(item string) {
	key := normalizeSkill(item)
	if key == "" {
		return
	}
	s[key] = struct{}{}
}

func (s SkillSet) Has(item string) bool {
	_, ok := s[normalizeSkill(item)]
	return ok
}

func (s SkillSet) Len() int {
	return len(s)
}

// Intersect returns the skills present in both sets.
func (s SkillSet) Intersect(other SkillSet) SkillSet {
	result := make(SkillSet)
	for key := range s {
		if _, ok := other[key]; ok {
			result[key] = struct{}{}
		}
	}
	return result
}

// Sorted returns the set content in alphabetical order.
func (s SkillSet) Sorted() []string {
	items := make([]string, 0, len(s))
	for key := range s {
		items = append(items, key)
	}
	sort.Strings(items)
	return items
}

func (s SkillSet) Clone() SkillSet {
	result := make(SkillSet, len(s))
	for key := range s {
		result[key] = struct{}{}
	}
	return result
}

func (s SkillSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *SkillSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewSkillSet(items...)
	return nil
}

func normalizeSkill(item string) string {
	return strings.Join(strings.Fields(Fold(item)), " ")
}
