// Package seed holds the default taxonomy written to a new journal: three
// types with three categories each, plus one welcome entry referencing one
// welcome item. Every backend seeds from these values so a fresh journal looks
// the same regardless of where it is stored.
package seed

// Stable ids of the seeded rows.
const (
	TypeActivity  = "type-activity"
	TypeCondition = "type-condition"
	TypeOutcome   = "type-outcome"

	WelcomeItemID  = "item-welcome"
	WelcomeEntryID = "entry-welcome"
)

// Type is a seeded type. Its position in Types is its display order.
type Type struct {
	ID         string
	Name       string
	Color      string
	Categories []Category
}

// Category is a seeded category.
type Category struct {
	ID   string
	Name string
}

// Types are seeded in display order.
var Types = []Type{
	{
		ID:    TypeActivity,
		Name:  "Activity",
		Color: "#4CAF50",
		Categories: []Category{
			{"cat-activity-eating", "Eating"},
			{"cat-activity-exercise", "Exercise"},
			{"cat-activity-medication", "Medication"},
		},
	},
	{
		ID:    TypeCondition,
		Name:  "Condition",
		Color: "#FF9800",
		Categories: []Category{
			{"cat-condition-mood", "Mood"},
			{"cat-condition-symptoms", "Symptoms"},
			{"cat-condition-environment", "Environment"},
		},
	},
	{
		ID:    TypeOutcome,
		Name:  "Outcome",
		Color: "#2196F3",
		Categories: []Category{
			{"cat-outcome-energy", "Energy"},
			{"cat-outcome-sleep", "Sleep"},
			{"cat-outcome-digestion", "Digestion"},
		},
	},
}

// Welcome entry content. The entry is logged under TypeCondition.
const (
	WelcomeCategoryID = "cat-condition-mood"
	WelcomeItemName   = "Started a health log"
	WelcomeComment    = "Welcome! Each entry records what you did or how you felt, and when."
)

// DefaultColor is given to types created without one.
const DefaultColor = "#9E9E9E"
