package news

import "strings"

// Category is the section a news item is filed under. Values are the strings
// stored in the categoria column.
type Category string

const (
	CategoryFootball  Category = "Futbol"
	CategoryWrestling Category = "WWE"
	CategoryTennis    Category = "Tenis"
	CategoryOther     Category = "Varios"
)

// DefaultCategory is what a fresh publish form starts with.
const DefaultCategory = CategoryFootball

// Categories lists every section in menu order.
func Categories() []Category {
	return []Category{CategoryFootball, CategoryWrestling, CategoryTennis, CategoryOther}
}

// ParseCategory maps a stored or submitted value onto a Category.
// Matching ignores case and surrounding space; "Fútbol" is accepted as Futbol.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, c.Label()) {
			return c, true
		}
	}
	return "", false
}

// Valid reports whether c is one of the known sections.
func (c Category) Valid() bool {
	_, ok := ParseCategory(string(c))
	return ok
}

// Label is the display name used in menus and badges.
func (c Category) Label() string {
	switch c {
	case CategoryFootball:
		return "Fútbol"
	case CategoryWrestling:
		return "WWE"
	case CategoryTennis:
		return "Tenis"
	case CategoryOther:
		return "Varios"
	}
	return string(c)
}
