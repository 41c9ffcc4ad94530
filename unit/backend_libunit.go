//go:build libunit

package unit

import (
	"unitgo/nxt"
	"unitgo/nxt/libunit"
)

func defaultLib() nxt.Lib { return libunit.New() }
