package gzgen

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gzmsgs/gzprotoc/internal/logging"
	"github.com/gzmsgs/gzprotoc/plugins"
)

// Names the generators are registered under. They match the protoc plugin
// binaries: protoc-gen-gzmsgs and protoc-gen-ignmsgs.
const (
	HeaderPluginName = "gzmsgs"
	SplicePluginName = "ignmsgs"
)

func init() {
	plugins.RegisterPlugin(HeaderPluginName, HeaderPlugin)
	plugins.RegisterPlugin(SplicePluginName, SplicePlugin)
}

// HeaderPlugin runs a HeaderGenerator, configured from the request args, over
// every file in the request.
//
// Recognized args: support_include=<path>, header_ext=<ext>, index=<bool>,
// verbose=<bool>.
func HeaderPlugin(req *plugins.CodeGenRequest, resp *plugins.CodeGenResponse) error {
	g := NewHeaderGenerator()
	var verbose bool
	err := parseArgs(req.Args, func(key, value string) error {
		switch key {
		case "support_include":
			g.SupportInclude = value
		case "header_ext":
			if !strings.HasPrefix(value, ".") {
				return errors.Errorf("header_ext %q must start with '.'", value)
			}
			g.HeaderExt = value
		case "index":
			index := true
			if err := parseBool(key, value, &index); err != nil {
				return err
			}
			g.SkipIndex = !index
		case "verbose":
			return parseBool(key, value, &verbose)
		default:
			return errUnrecognized(key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	g.Logger = logging.New(verbose).With(zap.String(logging.FieldPlugin, HeaderPluginName))
	defer func() { _ = g.Logger.Sync() }()

	for _, fd := range req.Files {
		if err := g.Generate(fd, req.Parameter(), resp); err != nil {
			return err
		}
	}
	return nil
}

// SplicePlugin runs a SpliceGenerator, configured from the request args, over
// every file in the request.
//
// Recognized args: registry_prefix=<str>, factory_include=<path>,
// register_macro=<name>, messages=first|strict, verbose=<bool>.
func SplicePlugin(req *plugins.CodeGenRequest, resp *plugins.CodeGenResponse) error {
	g := NewSpliceGenerator()
	var verbose bool
	err := parseArgs(req.Args, func(key, value string) error {
		switch key {
		case "registry_prefix":
			g.RegistryPrefix = value
		case "factory_include":
			g.FactoryInclude = value
		case "register_macro":
			if value == "" {
				return errors.New("register_macro requires a value")
			}
			g.RegisterMacro = value
		case "messages":
			switch value {
			case "first":
				g.Messages = FirstMessage
			case "strict":
				g.Messages = StrictSingleMessage
			default:
				return errors.Errorf("messages must be 'first' or 'strict', got %q", value)
			}
		case "verbose":
			return parseBool(key, value, &verbose)
		default:
			return errUnrecognized(key)
		}
		return nil
	})
	if err != nil {
		return err
	}
	g.Logger = logging.New(verbose).With(zap.String(logging.FieldPlugin, SplicePluginName))
	defer func() { _ = g.Logger.Sync() }()

	for _, fd := range req.Files {
		if err := g.Generate(fd, req.Parameter(), resp); err != nil {
			return err
		}
	}
	return nil
}

// parseArgs calls set for each key=value arg. A bare key is passed with an
// empty value. Empty args are skipped.
func parseArgs(args []string, set func(key, value string) error) error {
	for _, a := range args {
		if a == "" {
			continue
		}
		arg := strings.SplitN(a, "=", 2)
		var value string
		if len(arg) > 1 {
			value = arg[1]
		}
		if err := set(arg[0], value); err != nil {
			return err
		}
	}
	return nil
}

func parseBool(key, value string, dst *bool) error {
	if value == "" {
		*dst = true
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return errors.Errorf("%s: invalid boolean %q", key, value)
	}
	*dst = b
	return nil
}

func errUnrecognized(key string) error {
	return errors.Errorf("unrecognized parameter: %s", key)
}
