package models

import "context"

// CreatorRef is an opaque (type, id) reference to the entity that scheduled a
// task. The scheduler never interprets it beyond storage, filtering and
// copying into the archival record.
type CreatorRef struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// CreatorResolver looks up the entity behind a CreatorRef. Implementations
// are supplied by the surrounding system; the scheduling core only carries
// the reference.
type CreatorResolver interface {
	Resolve(ctx context.Context, ref CreatorRef) (any, error)
}
