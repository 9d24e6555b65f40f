package models

import (
	"strings"

	"github.com/pkg/errors"
)

// Built-in model presets. Both MegaDetector v5 releases share geometry
// and classes and differ only in the trained weights.
const (
	PresetMDv5a = "megadetector-v5a"
	PresetMDv5b = "megadetector-v5b"
)

// Presets lists the built-in preset names in selection order.
func Presets() []string {
	return []string{PresetMDv5a, PresetMDv5b}
}

// Preset returns the configuration for a built-in model release. The
// empty name selects MegaDetector v5a.
func Preset(name string) (Config, error) {
	switch name {
	case "", PresetMDv5a:
		return MegaDetector(), nil
	case PresetMDv5b:
		c := MegaDetector()
		c.Path = "md_v5b_d_pp_fp16.onnx"
		return c, nil
	default:
		return Config{}, errors.Errorf("unknown model preset %q (have %s)",
			name, strings.Join(Presets(), ", "))
	}
}
