// Package jsoncodec is the JSON encoder used for relay stats and template
// metadata. It follows encoding/json semantics through sonic.ConfigStd.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return defaultConfig.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// Encode writes v followed by a newline.
func Encode(w io.Writer, v any) error {
	return defaultConfig.NewEncoder(w).Encode(v)
}

// EncodeIndent writes v with two-space indentation, for terminal output.
func EncodeIndent(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
