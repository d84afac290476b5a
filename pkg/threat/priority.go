package threat

import (
	"fmt"
	"strings"
)

// Priority is an urgency tier. Tiers are totally ordered:
// CRITICAL > HIGH > MEDIUM > LOW.
type Priority string

const (
	Critical Priority = "CRITICAL"
	High     Priority = "HIGH"
	Medium   Priority = "MEDIUM"
	Low      Priority = "LOW"
)

// Priorities lists all tiers from most to least urgent.
var Priorities = []Priority{Critical, High, Medium, Low}

// Rank returns the tier's position, 0 being the most urgent, or -1 for an
// unknown tier.
func (p Priority) Rank() int {
	switch p {
	case Critical:
		return 0
	case High:
		return 1
	case Medium:
		return 2
	case Low:
		return 3
	}
	return -1
}

// Valid reports whether p is a known tier.
func (p Priority) Valid() bool {
	return p.Rank() >= 0
}

// Top reports whether p is the most urgent tier.
func (p Priority) Top() bool {
	return p == Critical
}

// ParsePriority parses a tier name, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("threat: unknown priority %q", s)
	}
	return p, nil
}

// Status is the dispatch state assigned to a new detection.
type Status string

const (
	StatusCritical Status = "critical"
	StatusPending  Status = "pending"
)

// StatusFor returns the status a new detection with priority p receives.
func StatusFor(p Priority) Status {
	if p.Top() {
		return StatusCritical
	}
	return StatusPending
}
