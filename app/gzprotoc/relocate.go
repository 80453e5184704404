package gzprotoc

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/gzmsgs/gzprotoc/gzgen"
	"github.com/gzmsgs/gzprotoc/internal/logging"
)

// relocateHeaders puts the public headers generated by the gzmsgs output in
// place of protoc's headers, which move to the details directory:
//
//	gz/msgs/foo.pb.h -> gz/msgs/details/foo.pb.h
//	gz/msgs/foo.gz.h -> gz/msgs/foo.pb.h
func relocateHeaders(conf *Config, fds []protoreflect.FileDescriptor, log *zap.Logger) error {
	out, ok := conf.Outputs[gzgen.HeaderPluginName]
	if !ok {
		return errors.Errorf("relocating headers requires a %s output", gzgen.HeaderPluginName)
	}
	headerExt := gzgen.DefaultHeaderExt
	for _, p := range out.Params {
		if v := strings.TrimPrefix(p, "header_ext="); v != p {
			headerExt = v
		}
	}

	for _, fd := range fds {
		names, err := gzgen.DeriveNames(fd.Path())
		if err != nil {
			return err
		}
		generated := filepath.Join(out.Dir, filepath.FromSlash(names.GeneratedHeader))
		detail := filepath.Join(out.Dir, filepath.FromSlash(names.DetailHeader))
		wrapper := filepath.Join(out.Dir, filepath.FromSlash(names.Path(names.Stem+headerExt)))

		if _, err := os.Stat(generated); err != nil {
			if os.IsNotExist(err) {
				return errors.Errorf("cannot relocate %s: it does not exist; the cpp output must use the same directory as %s", generated, gzgen.HeaderPluginName)
			}
			return err
		}
		if err := os.MkdirAll(filepath.Dir(detail), os.ModePerm); err != nil {
			return err
		}
		if err := os.Rename(generated, detail); err != nil {
			return errors.Wrapf(err, "failed to relocate %s", generated)
		}
		if err := os.Rename(wrapper, generated); err != nil {
			return errors.Wrapf(err, "failed to relocate %s", wrapper)
		}
		log.Info("relocated headers", zap.String(logging.FieldFile, fd.Path()), zap.String(logging.FieldOutput, detail))
	}
	return nil
}
