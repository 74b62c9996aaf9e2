// Package project tracks the projects that own chunks and collections.
// A project id doubles as a path segment and as part of a collection name,
// so validation is deliberately strict.
package project

import (
	"context"
	"errors"
	"regexp"
	"time"
)

// ErrInvalidID rejects project ids that cannot safely name a collection.
var ErrInvalidID = errors.New("project id must be lowercase alphanumeric")

// idRE keeps ids usable inside collection names on every backend.
var idRE = regexp.MustCompile(`^[a-z0-9]{1,48}$`)

// Project is a namespace for uploaded content and its derived collection.
type Project struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidateID enforces the id shape shared by all registries.
func ValidateID(id string) error {
	if !idRE.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

// Registry is the persistence contract for projects.
type Registry interface {
	// GetOrCreate returns the project, creating it on first reference.
	GetOrCreate(ctx context.Context, id string) (*Project, error)

	// List returns one page of projects. Pages start at 1.
	List(ctx context.Context, page, pageSize int) ([]Project, error)
}
