package gzprotoc

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// saveDescriptorSet writes fds to dest as a serialized FileDescriptorSet,
// each file after the files it imports. Imports that were not named on the
// command line are only included when includeImports is set.
func saveDescriptorSet(dest string, fds []protoreflect.FileDescriptor, includeImports bool) error {
	var fileNames map[string]struct{}
	if !includeImports {
		fileNames = map[string]struct{}{}
		for _, fd := range fds {
			fileNames[fd.Path()] = struct{}{}
		}
	}

	var fdSet descriptorpb.FileDescriptorSet
	alreadyExported := map[string]struct{}{}
	for _, fd := range fds {
		toFileDescriptorSet(alreadyExported, fileNames, &fdSet, fd)
	}
	b, err := proto.Marshal(&fdSet)
	if err != nil {
		return err
	}
	return writeFileResult(dest, b)
}

func toFileDescriptorSet(alreadySeen, fileNames map[string]struct{}, fdSet *descriptorpb.FileDescriptorSet, fd protoreflect.FileDescriptor) {
	if _, ok := alreadySeen[fd.Path()]; ok {
		return
	}
	alreadySeen[fd.Path()] = struct{}{}

	imports := fd.Imports()
	for i := 0; i < imports.Len(); i++ {
		dep := imports.Get(i).FileDescriptor
		if fileNames != nil {
			if _, ok := fileNames[dep.Path()]; !ok {
				continue
			}
		}
		toFileDescriptorSet(alreadySeen, fileNames, fdSet, dep)
	}
	fdSet.File = append(fdSet.File, protodesc.ToFileDescriptorProto(fd))
}
