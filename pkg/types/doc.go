// Package types defines the Journal interface, the catalog and log entity
// types, usage statistics, and the standard errors shared by every
// healthlog backend.
//
// Entities follow the taxonomy Type → Category → Item, with Quantifiers
// describing numeric measurements on items and Bundles grouping items that
// are logged together. A LogEntry references one Type and any number of
// Items, each optionally carrying quantifier values.
package types
