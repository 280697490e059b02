package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrRunInProgress = errors.New("pipeline run in progress")

	ErrInvalidTransition = errors.New("invalid status transition")
)

// SourceError is a failed feed. It never aborts ingestion.
type SourceError struct {
	Source string
	URL    string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s (%s): %v", e.Source, e.URL, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// GenerationError is a failed generation for one article.
type GenerationError struct {
	ArticleID uint
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation for article %d: %v", e.ArticleID, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

type PublicationErrorKind string

const (
	PublicationAuth       PublicationErrorKind = "auth"
	PublicationTransport  PublicationErrorKind = "transport"
	PublicationValidation PublicationErrorKind = "validation"
)

// PublicationError separates credential problems from transient ones.
type PublicationError struct {
	Kind       PublicationErrorKind
	StatusCode int
	Err        error
}

func (e *PublicationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("publication %s failure (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("publication %s failure: %v", e.Kind, e.Err)
}

func (e *PublicationError) Unwrap() error { return e.Err }

// Retryable is true for transport failures only.
func (e *PublicationError) Retryable() bool {
	return e.Kind == PublicationTransport
}
