package hub

import (
	"github.com/dshills/eventhub/internal/event"
	"github.com/dshills/eventhub/internal/extension"
	"github.com/dshills/eventhub/internal/sharedstate"
)

const hubExtensionName = "eventhub"

// hubExtension publishes the hub version and the registered extensions as
// shared state under the name "eventhub".
type hubExtension struct{}

func newHubExtension() extension.Factory {
	return func(extension.API) (extension.Extension, error) {
		return hubExtension{}, nil
	}
}

func (hubExtension) Name() string                    { return hubExtensionName }
func (hubExtension) FriendlyName() string            { return "EventHub" }
func (hubExtension) Version() string                 { return Version }
func (hubExtension) OnRegistered()                   {}
func (hubExtension) OnUnregistered()                 {}
func (hubExtension) ReadyForEvent(*event.Event) bool { return true }

// publishHubState must run on the hub executor.
func (h *Hub) publishHubState() {
	reg := h.registry.Load()
	c, ok := reg.byName[hubExtensionName]
	if !ok {
		return
	}

	exts := make(map[string]any, len(reg.order))
	for _, other := range reg.order {
		if other.name == hubExtensionName {
			continue
		}
		info := other.info()
		entry := map[string]any{
			"friendlyName": info.FriendlyName,
			"version":      info.Version,
		}
		if len(info.Metadata) > 0 {
			md := make(map[string]any, len(info.Metadata))
			for k, v := range info.Metadata {
				md[k] = v
			}
			entry["metadata"] = md
		}
		exts[info.Name] = entry
	}

	h.createState(c, sharedstate.KindStandard, map[string]any{
		"version":    Version,
		"extensions": exts,
	}, h.versionFor(nil), false)
}
