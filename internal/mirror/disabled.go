package mirror

import (
	"context"
	"io"

	"gsm-go/internal/gsm"
)

// Disabled is the mirror used when no backend is configured. Every operation
// fails with gsm.ErrBackendDisabled.
type Disabled struct{}

func (Disabled) Write(context.Context, string, io.Reader, int64) error { return gsm.ErrBackendDisabled }
func (Disabled) Read(context.Context, string, io.Writer) error         { return gsm.ErrBackendDisabled }
func (Disabled) Delete(context.Context, string) error                  { return gsm.ErrBackendDisabled }
func (Disabled) RemoveAll(context.Context, string) error               { return gsm.ErrBackendDisabled }
func (Disabled) Check(context.Context) error                           { return gsm.ErrBackendDisabled }

func (Disabled) List(context.Context, string) ([]string, error) {
	return nil, gsm.ErrBackendDisabled
}

var _ gsm.Mirror = Disabled{}
