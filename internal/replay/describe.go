package replay

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/SmitUplenchwar2687/rrview/internal/recording"
)

var incrementalSources = []string{
	"Mutation",
	"MouseMove",
	"MouseInteraction",
	"Scroll",
	"ViewportResize",
	"Input",
	"TouchMove",
	"MediaInteraction",
	"StyleSheetRule",
	"CanvasMutation",
	"Font",
	"Log",
	"Drag",
	"StyleDeclaration",
	"Selection",
	"AdoptedStyleSheet",
	"CustomElement",
}

// Describe renders a one-line, human readable summary of an event.
func Describe(e recording.Event) string {
	data := gjson.ParseBytes(e.Data)
	switch e.Type {
	case recording.EventMeta:
		return fmt.Sprintf("%s %s %dx%d", e.Type, data.Get("href").String(), data.Get("width").Int(), data.Get("height").Int())
	case recording.EventIncrementalSnapshot:
		src := data.Get("source")
		if !src.Exists() {
			return e.Type.String()
		}
		n := int(src.Int())
		if n >= 0 && n < len(incrementalSources) {
			return fmt.Sprintf("%s %s", e.Type, incrementalSources[n])
		}
		return fmt.Sprintf("%s source=%d", e.Type, n)
	case recording.EventCustom:
		return fmt.Sprintf("%s %s", e.Type, data.Get("tag").String())
	case recording.EventPlugin:
		return fmt.Sprintf("%s %s", e.Type, data.Get("plugin").String())
	default:
		return e.Type.String()
	}
}
