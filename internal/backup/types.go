// Package backup exports a journal to a portable, name-keyed snapshot and
// merges such a snapshot back into a journal. Every cross reference in a
// snapshot is by name, so a backup taken on one installation can be
// imported into another.
package backup

// BackupVersion is the snapshot format written by Export. Import accepts
// versions 1 through BackupVersion.
const BackupVersion = 1

// BackupData is the root of a snapshot.
type BackupData struct {
	Version       int            `yaml:"version" json:"version"`
	ExportedAtUTC string         `yaml:"exportedAtUtc" json:"exportedAtUtc"`
	Catalog       Catalog        `yaml:"catalog" json:"catalog"`
	Logs          []Log          `yaml:"logs" json:"logs"`
	Settings      map[string]any `yaml:"settings" json:"settings"`
}

// Catalog holds the taxonomy.
type Catalog struct {
	Types      []Type     `yaml:"types" json:"types"`
	Categories []Category `yaml:"categories" json:"categories"`
	Items      []Item     `yaml:"items" json:"items"`
	Bundles    []Bundle   `yaml:"bundles" json:"bundles"`
}

type Type struct {
	Name         string `yaml:"name" json:"name"`
	DisplayOrder int    `yaml:"displayOrder" json:"displayOrder"`
	Color        string `yaml:"color,omitempty" json:"color,omitempty"`
}

type Category struct {
	TypeName string `yaml:"typeName" json:"typeName"`
	Name     string `yaml:"name" json:"name"`
}

type Item struct {
	TypeName     string       `yaml:"typeName" json:"typeName"`
	CategoryName string       `yaml:"categoryName" json:"categoryName"`
	Name         string       `yaml:"name" json:"name"`
	Description  string       `yaml:"description,omitempty" json:"description,omitempty"`
	Quantifiers  []Quantifier `yaml:"quantifiers,omitempty" json:"quantifiers,omitempty"`
}

type Quantifier struct {
	Name     string   `yaml:"name" json:"name"`
	MinValue *float64 `yaml:"minValue,omitempty" json:"minValue,omitempty"`
	MaxValue *float64 `yaml:"maxValue,omitempty" json:"maxValue,omitempty"`
	Units    string   `yaml:"units,omitempty" json:"units,omitempty"`
}

// Bundle lists its members in display order.
type Bundle struct {
	TypeName string         `yaml:"typeName,omitempty" json:"typeName,omitempty"`
	Name     string         `yaml:"name" json:"name"`
	Items    []BundleMember `yaml:"items" json:"items"`
}

// BundleMember names an item, or a nested bundle when Bundle is set.
type BundleMember struct {
	Name         string `yaml:"name,omitempty" json:"name,omitempty"`
	CategoryName string `yaml:"categoryName,omitempty" json:"categoryName,omitempty"`
	Bundle       string `yaml:"bundle,omitempty" json:"bundle,omitempty"`
}

type Log struct {
	TimestampUTC string    `yaml:"timestampUtc" json:"timestampUtc"`
	TypeName     string    `yaml:"typeName" json:"typeName"`
	Comment      string    `yaml:"comment,omitempty" json:"comment,omitempty"`
	Items        []LogItem `yaml:"items" json:"items"`
}

type LogItem struct {
	Name         string            `yaml:"name" json:"name"`
	CategoryName string            `yaml:"categoryName,omitempty" json:"categoryName,omitempty"`
	BundleName   string            `yaml:"bundleName,omitempty" json:"bundleName,omitempty"`
	Quantifiers  []QuantifierValue `yaml:"quantifiers,omitempty" json:"quantifiers,omitempty"`
}

type QuantifierValue struct {
	Name  string  `yaml:"name" json:"name"`
	Value float64 `yaml:"value" json:"value"`
}

// Mode selects how an import treats existing data.
type Mode string

const (
	ModeMerge   Mode = "merge"
	ModeReplace Mode = "replace"
)

// ImportOptions controls Import.
type ImportOptions struct {
	Mode   Mode
	DryRun bool
}

// Counts classifies the records of one kind.
type Counts struct {
	Add    int `json:"add"`
	Update int `json:"update"`
	Skip   int `json:"skip"`
}

// Total returns the number of records classified.
func (c Counts) Total() int { return c.Add + c.Update + c.Skip }

// ImportPreview reports how each incoming record was classified, and the
// errors and warnings met on the way.
type ImportPreview struct {
	CatalogItems Counts   `json:"catalogItems"`
	Bundles      Counts   `json:"bundles"`
	Logs         Counts   `json:"logs"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
}
