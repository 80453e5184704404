// Package plugins contains the host side of the protoc plugin protocol:
// decoding a CodeGeneratorRequest into descriptors, giving generators an
// output directory to write into, and encoding what they wrote back into a
// CodeGeneratorResponse.
//
// # Interface for Protoc Plugins
//
// A protoc plugin need only provide a function whose signature matches the
// Plugin type and then wire it up in a main method like so:
//
//	func main() {
//	    plugins.PluginMain(doCodeGen)
//	}
//
//	func doCodeGen(req  *plugins.CodeGenRequest,
//	               resp *plugins.CodeGenResponse) error {
//	    // ...
//	    // Process req, generate code to resp
//	    // ...
//	}
//
// Generated files are created with CodeGenResponse.Open. Code can be added to
// files generated by another plugin in the same protoc run, at one of its
// named insertion points, with CodeGenResponse.OpenForInsert.
//
// If a plugin returns an error, none of its outputs are sent to protoc.
package plugins
