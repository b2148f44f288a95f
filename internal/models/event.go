package models

type Category string

const (
	CategoryMajor    Category = "major"
	CategoryMinor    Category = "minor"
	CategoryTreasure Category = "treasure"
	CategoryTrivia   Category = "trivia"
)

// Categories lists every event category in display order.
func Categories() []Category {
	return []Category{CategoryMajor, CategoryMinor, CategoryTreasure, CategoryTrivia}
}

func (c Category) Label() string {
	switch c {
	case CategoryMajor:
		return "Major Events"
	case CategoryMinor:
		return "Minor Events"
	case CategoryTreasure:
		return "Treasure Hunt"
	case CategoryTrivia:
		return "Trivia"
	}
	return string(c)
}

type Event struct {
	ID          int64    `db:"id" json:"id"`
	Title       string   `db:"title" json:"title" validate:"required,max=200"`
	Description string   `db:"description" json:"description"`
	Day         string   `db:"day" json:"day" validate:"required,datetime=2006-01-02"`
	Time        string   `db:"time" json:"time" validate:"required,datetime=15:04"`
	Category    Category `db:"category" json:"category" validate:"required,oneof=major minor treasure trivia"`
	Venue       string   `db:"venue" json:"venue" validate:"max=100"`
}

func (e *Event) Validate() error {
	return check(e)
}
