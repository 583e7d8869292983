package extract

import (
	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// Validate validates an extraction request
func (r *Request) Validate() error {
	if err := r.Target.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid image target", err)
	}
	if r.Source == "" {
		return app.NewError(app.ErrCodeInvalidInput, "source path is required", nil)
	}
	if r.Destination == "" {
		return app.NewError(app.ErrCodeInvalidInput, "destination is required", nil)
	}
	return nil
}
