package inspect

import (
	"fmt"

	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

var knownSections = map[string]bool{
	SectionHome:    true,
	SectionIndex:   true,
	SectionFreeMap: true,
	SectionTree:    true,
	SectionDir:     true,
	SectionLookup:  true,
}

// Validate validates an inspection request and fills in defaults
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid image target", err)
	}

	if len(r.Sections) == 0 {
		r.Sections = append([]string(nil), DefaultSections...)
	}
	for _, s := range r.Sections {
		if !knownSections[s] {
			return app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("unknown section %q", s), nil)
		}
		if s == SectionLookup && r.Path == "" {
			return app.NewError(app.ErrCodeInvalidInput, "lookup requires a path", nil)
		}
	}

	if r.MaxDepth < 0 {
		return app.NewError(app.ErrCodeInvalidInput, "max-depth cannot be negative", nil)
	}
	if r.Path == "" {
		r.Path = "/"
	}
	return nil
}

func (r *Request) wants(section string) bool {
	for _, s := range r.Sections {
		if s == section {
			return true
		}
	}
	return false
}
