package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreset(t *testing.T) {
	tests := []struct {
		name     string
		preset   string
		wantPath string
	}{
		{"empty selects v5a", "", "md_v5a_d_pp_fp16.onnx"},
		{"v5a", PresetMDv5a, "md_v5a_d_pp_fp16.onnx"},
		{"v5b", PresetMDv5b, "md_v5b_d_pp_fp16.onnx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Preset(tt.preset)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, c.Path)
			assert.NoError(t, c.Validate())
		})
	}
}

func TestPresetUnknown(t *testing.T) {
	_, err := Preset("megadetector-v4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), PresetMDv5a)
}

func TestPresetsListed(t *testing.T) {
	assert.Equal(t, []string{PresetMDv5a, PresetMDv5b}, Presets())
}
