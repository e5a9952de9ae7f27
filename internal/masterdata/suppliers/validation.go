package suppliers

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/farmsync/farmsync/internal/shared"
)

var nameFolder = cases.Fold()

// foldName produces the canonical case-insensitive key for uniqueness checks.
func foldName(name string) string {
	return nameFolder.String(strings.TrimSpace(name))
}

func (s *Service) validate(input CreateSupplierInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: supplier name is required", shared.ErrInvalidArgument)
	}
	return nil
}
