package types

// UsageStat is the usage count of a type, category, item or bundle.
// Count is the number of distinct log entries that reference the entity.
type UsageStat struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
	IsBundle bool   `json:"is_bundle,omitempty"`
}
