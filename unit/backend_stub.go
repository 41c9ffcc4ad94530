//go:build !libunit

package unit

import (
	"errors"

	"unitgo/nxt"
)

var errNoLibunit = errors.New("unit: built without libunit support; rebuild with -tags libunit")

func defaultLib() nxt.Lib { return unavailableLib{} }

// unavailableLib fails initialization so New reports a sticky InitError.
type unavailableLib struct{}

func (unavailableLib) Init(nxt.InitParams) (nxt.Ctx, error)   { return nil, errNoLibunit }
func (unavailableLib) CtxAlloc(nxt.Ctx, any) (nxt.Ctx, error) { return nil, errNoLibunit }
func (unavailableLib) Run(nxt.Ctx) nxt.Status                 { return nxt.Error }
func (unavailableLib) RunOnce(nxt.Ctx) nxt.Status             { return nxt.Error }
func (unavailableLib) Done(nxt.Ctx)                           {}
