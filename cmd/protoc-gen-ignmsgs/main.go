// Command protoc-gen-ignmsgs is a protoc plugin that adds message factory
// registration and shared pointer aliases to the files protoc's C++
// generator creates, through their insertion points. It must run in the same
// protoc invocation as, and after, the C++ generator:
//
//	protoc --cpp_out=gen --ignmsgs_out=gen ign_msgs/bar.proto
//
// Each file is expected to declare one primary message: the first one.
//
// Parameters (--ignmsgs_opt or before the colon in --ignmsgs_out), comma
// separated:
//
//	registry_prefix=<str>   factory key prefix (default: the proto package)
//	factory_include=<path>  factory header (default ignition/messages/Factory.hh)
//	register_macro=<name>   registration macro (default IGN_REGISTER_STATIC_MSG)
//	messages=first|strict   strict rejects files with more than one message
//	verbose                 debug logging to stderr
package main

import (
	"github.com/gzmsgs/gzprotoc/gzgen"
	"github.com/gzmsgs/gzprotoc/plugins"
)

func main() {
	plugins.PluginMain(gzgen.SplicePlugin)
}
