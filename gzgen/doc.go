// Package gzgen generates the C++ support code that augments the message
// classes protoc's C++ generator creates for gz-msgs style message packages.
//
// Two generators are provided:
//
//   - HeaderGenerator writes a new public header per .proto file. The header
//     includes protoc's header (moved to a details/ directory by the build)
//     and declares, in the file's package namespaces, unique and shared
//     pointer aliases for every message. It also writes a .pb_index file
//     listing the file's messages, one per line.
//   - SpliceGenerator is the older approach: it writes into protoc's own
//     .pb.h and .pb.cc files through their insertion points, registering the
//     file's first message with a message factory and declaring shared
//     pointer aliases for it.
//
// Both derive everything from the file descriptor: its name (see
// DeriveNames), its package (see Namespaces) and its top-level messages in
// declaration order (see Walk). Output is deterministic.
//
// HeaderPlugin and SplicePlugin adapt the generators to the plugins package.
// Importing this package registers them as the "gzmsgs" and "ignmsgs"
// in-process plugins.
package gzgen
