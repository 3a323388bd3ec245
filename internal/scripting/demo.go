package scripting

import (
	"context"
	_ "embed"
)

// DemoScript walks through every view kind.
//
//go:embed demo.js
var DemoScript string

// DemoName is the script name reported in errors from the demo.
const DemoName = "demo.js"

// RunDemo runs DemoScript.
func (h *Host) RunDemo(ctx context.Context) error {
	return h.Run(ctx, DemoName, DemoScript)
}
