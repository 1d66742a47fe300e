// Package source reads raw downlink frames from captures, frame dumps or a
// live demodulator feed.
package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/satrx/internal/config"
	"firestige.xyz/satrx/internal/core"
)

// Source produces raw frames.
type Source interface {
	// Name labels frames and metrics from this source.
	Name() string
	// Read sends frames to out until the input ends, ctx is cancelled or an
	// error occurs. A clean end of input returns nil. Read does not close out.
	Read(ctx context.Context, out chan<- core.RawChunk) error
}

// factory decodes a source's options and either checks or builds it.
type factory struct {
	check func(options map[string]any) error
	build func(options map[string]any) (Source, error)
}

var factories = map[string]factory{
	TypePCAP: register(NewPCAP),
	TypeHex:  register(NewHex),
	TypeUDP:  register(NewUDP),
}

type validator interface {
	validate() error
}

// register binds an options type to its constructor. Constructors validate
// their options before acquiring any resource.
func register[O any, PO interface {
	*O
	validator
}, S Source](build func(O) (S, error)) factory {
	return factory{
		check: func(m map[string]any) error {
			var opts O
			if err := decodeOptions(m, &opts); err != nil {
				return err
			}
			return PO(&opts).validate()
		},
		build: func(m map[string]any) (Source, error) {
			var opts O
			if err := decodeOptions(m, &opts); err != nil {
				return nil, err
			}
			s, err := build(opts)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}
}

// Types lists the supported source types.
func Types() []string {
	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New builds the source selected by cfg.
func New(cfg config.SourceConfig) (Source, error) {
	f, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrSourceUnknown, cfg.Type)
	}
	return f.build(cfg.Options)
}

// Check validates cfg without opening files or sockets.
func Check(cfg config.SourceConfig) error {
	f, ok := factories[cfg.Type]
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrSourceUnknown, cfg.Type)
	}
	return f.check(cfg.Options)
}

// decodeOptions maps a loosely typed options map onto a struct. Values set
// through environment variables arrive as strings, hence weak typing.
func decodeOptions(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("%w: source options: %v", core.ErrConfigInvalid, err)
	}
	return nil
}

// emit hands one frame to out unless ctx is done first.
func emit(ctx context.Context, out chan<- core.RawChunk, raw core.RawChunk) error {
	select {
	case out <- raw:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
