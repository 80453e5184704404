package plugins

import (
	"fmt"
	"sync"
)

var (
	pluginReg   = map[string]Plugin{}
	pluginRegMu sync.Mutex
)

// RegisterPlugin registers a plugin with the given name. Packages that provide
// generators should call this method in an init() function so that drivers
// linking them in can run the generator in-process instead of forking a
// protoc-gen-<name> executable. The name should not include the "protoc-gen-"
// prefix.
func RegisterPlugin(name string, plugin Plugin) {
	pluginRegMu.Lock()
	defer pluginRegMu.Unlock()
	if _, ok := pluginReg[name]; ok {
		panic(fmt.Sprintf("plugin with name %s already registered", name))
	}
	pluginReg[name] = plugin
}

// GetRegisteredPlugins gets a map of all registered plugins, keyed by name.
func GetRegisteredPlugins() map[string]Plugin {
	ret := map[string]Plugin{}
	pluginRegMu.Lock()
	defer pluginRegMu.Unlock()
	for k, v := range pluginReg {
		ret[k] = v
	}
	return ret
}
