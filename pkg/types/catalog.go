package types

import "strings"

// Type is a top-level taxonomy root such as Activity, Condition or Outcome.
type Type struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DisplayOrder int    `json:"display_order"`
	Color        string `json:"color,omitempty"`
}

// Category groups items within one Type. (TypeID, Name) is unique.
type Category struct {
	ID     string `json:"id"`
	TypeID string `json:"type_id"`
	Name   string `json:"name"`
}

// Item is an individually loggable thing. (CategoryID, Name) is unique.
type Item struct {
	ID          string `json:"id"`
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ItemQuantifier defines a numeric measurement attached to an item.
// MinValue and MaxValue describe the expected range; recorded values are
// not checked against them.
type ItemQuantifier struct {
	ID       string   `json:"id"`
	ItemID   string   `json:"item_id"`
	Name     string   `json:"name"`
	MinValue *float64 `json:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty"`
	Units    string   `json:"units,omitempty"`
}

// Bundle is a named, ordered group of items logged together.
type Bundle struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	TypeID string `json:"type_id,omitempty"`
}

// BundleMember is one slot of a bundle. Exactly one of ItemID and
// MemberBundleID is set.
type BundleMember struct {
	ID             string `json:"id"`
	BundleID       string `json:"bundle_id"`
	ItemID         string `json:"item_id,omitempty"`
	MemberBundleID string `json:"member_bundle_id,omitempty"`
	DisplayOrder   int    `json:"display_order"`
}

// Validate returns ErrInvalidBundleMember unless exactly one member
// reference is set.
func (m BundleMember) Validate() error {
	if (m.ItemID == "") == (m.MemberBundleID == "") {
		return ErrInvalidBundleMember
	}
	return nil
}

// CatalogItem is the flat listing row for an item joined with its taxonomy.
type CatalogItem struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	CategoryID       string `json:"category_id"`
	CategoryName     string `json:"category_name"`
	TypeID           string `json:"type_id"`
	TypeName         string `json:"type_name"`
	TypeDisplayOrder int    `json:"type_display_order"`
}

// ItemDetail is a CatalogItem together with its quantifier definitions.
type ItemDetail struct {
	CatalogItem
	Quantifiers []ItemQuantifier `json:"quantifiers"`
}

// CatalogBundle is a bundle joined with its type name and ordered members.
type CatalogBundle struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	TypeID   string                `json:"type_id,omitempty"`
	TypeName string                `json:"type_name,omitempty"`
	Members  []CatalogBundleMember `json:"members"`
}

// CatalogBundleMember describes one member of a CatalogBundle. Item fields
// are set for item members, MemberBundle fields for nested bundles.
type CatalogBundleMember struct {
	ItemID           string `json:"item_id,omitempty"`
	ItemName         string `json:"item_name,omitempty"`
	CategoryID       string `json:"category_id,omitempty"`
	CategoryName     string `json:"category_name,omitempty"`
	MemberBundleID   string `json:"member_bundle_id,omitempty"`
	MemberBundleName string `json:"member_bundle_name,omitempty"`
	DisplayOrder     int    `json:"display_order"`
}

// ItemIDs returns the ids of the bundle's item members in display order.
func (b CatalogBundle) ItemIDs() []string {
	ids := make([]string, 0, len(b.Members))
	for _, m := range b.Members {
		if m.ItemID != "" {
			ids = append(ids, m.ItemID)
		}
	}
	return ids
}

// QuantifierInput describes a quantifier definition to write.
type QuantifierInput struct {
	Name     string   `json:"name"`
	MinValue *float64 `json:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty"`
	Units    string   `json:"units,omitempty"`
}

// ItemInput carries a full item edit. Type and category are resolved by
// name and created when missing. An empty ID creates a new item.
type ItemInput struct {
	ID           string            `json:"id,omitempty"`
	TypeName     string            `json:"type_name"`
	CategoryName string            `json:"category_name"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Quantifiers  []QuantifierInput `json:"quantifiers,omitempty"`
}

// Validate checks required names and quantifier name uniqueness.
func (in ItemInput) Validate() error {
	if strings.TrimSpace(in.TypeName) == "" ||
		strings.TrimSpace(in.CategoryName) == "" ||
		strings.TrimSpace(in.Name) == "" {
		return ErrInvalidName
	}
	seen := make(map[string]bool, len(in.Quantifiers))
	for _, q := range in.Quantifiers {
		key := strings.ToLower(strings.TrimSpace(q.Name))
		if key == "" || seen[key] {
			return ErrInvalidName
		}
		seen[key] = true
	}
	return nil
}

// BundleMemberInput references one bundle member. Exactly one field is set.
type BundleMemberInput struct {
	ItemID   string `json:"item_id,omitempty"`
	BundleID string `json:"bundle_id,omitempty"`
}

// BundleInput carries a bundle definition. Members are stored in slice order.
type BundleInput struct {
	Name    string              `json:"name"`
	TypeID  string              `json:"type_id,omitempty"`
	Members []BundleMemberInput `json:"members"`
}

// Validate checks the bundle name and the one-member-type rule.
func (in BundleInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrInvalidName
	}
	for _, m := range in.Members {
		if err := (BundleMember{ItemID: m.ItemID, MemberBundleID: m.BundleID}).Validate(); err != nil {
			return err
		}
	}
	return nil
}
