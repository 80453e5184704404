// Command protoc-gen-gzmsgs is a protoc plugin that generates, for every
// .proto file, a public C++ header wrapping the header protoc generates plus
// an index of the file's message names.
//
//	protoc --cpp_out=gen --gzmsgs_out=gen gz/msgs/foo.proto
//
// produces gen/gz/msgs/foo.gz.h and gen/gz_msgs_foo.pb_index. The build is
// expected to move gen/gz/msgs/foo.pb.h to gen/gz/msgs/details/foo.pb.h and
// gen/gz/msgs/foo.gz.h to gen/gz/msgs/foo.pb.h (see gzprotoc's
// --relocate_headers).
//
// Parameters (--gzmsgs_opt or before the colon in --gzmsgs_out), comma
// separated:
//
//	support_include=<path>  extra header to include (default gz/msgs/Export.hh)
//	header_ext=<ext>        public header extension (default .gz.h)
//	index=<bool>            write the .pb_index file (default true)
//	verbose                 debug logging to stderr
package main

import (
	"github.com/gzmsgs/gzprotoc/gzgen"
	"github.com/gzmsgs/gzprotoc/plugins"
)

func main() {
	plugins.PluginMain(gzgen.HeaderPlugin)
}
