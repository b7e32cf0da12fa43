// Package models defines the data types shared by the registry, the HTTP layer and the history store.
package models

import "time"

// Site is one published page. Link doubles as the filename stem under sites/
// and as the URL path segment.
type Site struct {
	Link    string `json:"link"`
	Content string `json:"content"`
}

// Entry pairs a site with the display name it is registered under.
type Entry struct {
	Name string `json:"name"`
	Site
}

// ChangeKind identifies a registry mutation.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is emitted by the registry after every successful mutation.
type Change struct {
	Kind ChangeKind `json:"kind"`
	Name string     `json:"name"`
	Link string     `json:"link"`
	At   time.Time  `json:"at"`
	// External marks changes made by another process and picked up on reload.
	External bool `json:"external,omitempty"`
}
