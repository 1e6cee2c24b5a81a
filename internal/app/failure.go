package app

import (
	"errors"
	"fmt"

	"github.com/vk/sdbv/internal/fetch"
)

// Failure classifies an error for user-facing presentation.
type Failure int

const (
	FailureNone Failure = iota
	// FailureTransport means the document could not be fetched.
	FailureTransport
	// FailureData means the document was fetched but is malformed.
	FailureData
)

func (f Failure) String() string {
	switch f {
	case FailureTransport:
		return "transport"
	case FailureData:
		return "data"
	}
	return "none"
}

// Classify maps err to a Failure.
func Classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, fetch.ErrTransport):
		return FailureTransport
	}
	return FailureData
}

// Explain renders err the way the user should see it.
func Explain(location string, err error) string {
	switch Classify(err) {
	case FailureNone:
		return ""
	case FailureTransport:
		return fmt.Sprintf("Could not load database file: %s\nError: %v", location, err)
	}
	return fmt.Sprintf("Error: %v", err)
}
