package parser

import (
	"github.com/IshaanNene/bookgoat/internal/types"
)

// Parser extracts one record from a fetched page.
type Parser interface {
	// Parse returns the record for page, or a *types.ParseError when a
	// required field cannot be found.
	Parse(page *types.Page) (*types.Record, error)
}
