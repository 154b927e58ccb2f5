// Package models defines data structures shared across the application.
package models

import (
	"strings"
	"time"
)

// Impact is the coarse significance tier assigned to a change request.
type Impact string

const (
	// ImpactMajor covers features, bug fixes, performance work and refactors.
	ImpactMajor Impact = "Major"
	// ImpactMinor covers small fixes and easy additions.
	ImpactMinor Impact = "Minor"
	// ImpactTiny covers docs, typos, cosmetic fixes and dependency bumps.
	ImpactTiny Impact = "Tiny"
	// ImpactUnclassified marks a classification whose model output could not be parsed.
	ImpactUnclassified Impact = "Unclassified"
)

// ParseImpact maps a tier name onto the closed Impact set, ignoring case.
// Unclassified is never returned; callers decide what a failed parse means.
func ParseImpact(s string) (Impact, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "major":
		return ImpactMajor, true
	case "minor":
		return ImpactMinor, true
	case "tiny":
		return ImpactTiny, true
	}
	return "", false
}

// Valid reports whether i is one of the tiers a model may assign.
func (i Impact) Valid() bool {
	return i == ImpactMajor || i == ImpactMinor || i == ImpactTiny
}

// Lifecycle is the state a change request was observed in.
type Lifecycle string

const (
	LifecycleMerged Lifecycle = "merged"
	LifecycleOpened Lifecycle = "opened"
)

// ChangeRequest is a pull request as retrieved from the forge.
type ChangeRequest struct {
	// Number is the pull request number, unique within its repository
	Number int

	// Title is the pull request title
	Title string

	// Body is the pull request description, possibly empty
	Body string

	// Author is the login of the user who opened the pull request
	Author string

	// URL is the web link to the pull request
	URL string

	// CreatedAt is the timestamp when the pull request was opened
	CreatedAt time.Time

	// MergedAt is set once the pull request has been merged
	MergedAt *time.Time

	// Diff is the raw unified diff text
	Diff string
}

// Lifecycle returns merged when the request has a merge timestamp.
func (c ChangeRequest) Lifecycle() Lifecycle {
	if c.MergedAt != nil {
		return LifecycleMerged
	}
	return LifecycleOpened
}

// Classification is the model's verdict on a change request. It is the only
// thing persisted in the cache.
type Classification struct {
	Description string `json:"description"`
	Impact      Impact `json:"impact"`

	// Raw keeps the unparsed model text when Impact is Unclassified.
	Raw string `json:"-"`
}

// Unclassified reports whether the model output for this classification was malformed.
func (c Classification) Unclassified() bool {
	return c.Impact == ImpactUnclassified
}

// AnalyzedChangeRequest joins fresh request metadata with its classification.
type AnalyzedChangeRequest struct {
	Number     int
	Title      string
	URL        string
	Author     string
	Repository string
	State      Lifecycle
	Classification
}

// Issue represents a recently filed GitHub issue.
type Issue struct {
	// Number is the issue number in GitHub (e.g., 42)
	Number int

	// Title is the issue's title or summary
	Title string

	// URL is the web link to the issue
	URL string

	// Author is the login of the user who filed the issue
	Author string

	// CreatedAt is the timestamp when the issue was created
	CreatedAt time.Time
}
