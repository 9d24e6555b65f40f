// Package models - Declarative model configuration.
//
// A model is described by a small YAML file rather than code, so swapping a
// MegaDetector release (or any detector with the same export shape) never
// touches the pipeline:
//
//	path: md_v5a_d_pp_fp16.onnx
//	input_name: images
//	input_size: 1280
//	channel_order: chw
//	output_name: output0
//	output_layout: boxes
//	normalization:
//	  scale: 255
//	  fill: 114
//	classes: [animal, person, vehicle]
//	half: false
//
// Omitted fields fall back to the MegaDetector v5 values above. The
// output_layout is boxes for exports with suppression baked in, or yolo
// for raw YOLOv5-family exports.
package models

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trailsense/go-detect/models/postprocess"
)

// ChannelOrder is the pixel layout of the input tensor.
type ChannelOrder string

const (
	// OrderCHW is planar channels-first layout.
	OrderCHW ChannelOrder = "chw"
	// OrderHWC is interleaved channels-last layout.
	OrderHWC ChannelOrder = "hwc"
)

// Normalization maps input pixels into model range.
type Normalization struct {
	// Scale divides every channel value.
	Scale float32 `json:"scale" yaml:"scale"`
	// Fill is the letterbox padding value, applied before scaling.
	Fill uint8 `json:"fill" yaml:"fill"`
}

// Config describes one ONNX detection model.
type Config struct {
	Path          string             `json:"path" yaml:"path"`
	InputName     string             `json:"input_name" yaml:"input_name"`
	InputSize     int                `json:"input_size" yaml:"input_size"`
	ChannelOrder  ChannelOrder       `json:"channel_order" yaml:"channel_order"`
	OutputName    string             `json:"output_name" yaml:"output_name"`
	OutputLayout  postprocess.Layout `json:"output_layout" yaml:"output_layout"`
	Normalization Normalization      `json:"normalization" yaml:"normalization"`
	Classes       []string           `json:"classes" yaml:"classes"`
	// Half marks a model whose IO tensors are float16.
	Half bool `json:"half" yaml:"half"`
}

// MegaDetector returns the built-in MegaDetector v5 configuration.
func MegaDetector() Config {
	return Config{
		Path:          "md_v5a_d_pp_fp16.onnx",
		InputName:     "images",
		InputSize:     1280,
		ChannelOrder:  OrderCHW,
		OutputName:    "output0",
		OutputLayout:  postprocess.LayoutBoxes,
		Normalization: Normalization{Scale: 255, Fill: 114},
		Classes:       []string{"animal", "person", "vehicle"},
	}
}

// Load reads a YAML model config, rejecting unknown fields, and fills
// omitted values with the MegaDetector defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "opening model config")
	}
	defer f.Close()

	var c Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Config{}, errors.Wrapf(err, "parsing model config %s", path)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "model config %s", path)
	}
	return c, nil
}

// ApplyDefaults fills zero-valued fields from the MegaDetector defaults.
func (c *Config) ApplyDefaults() {
	def := MegaDetector()
	if c.Path == "" {
		c.Path = def.Path
	}
	if c.InputName == "" {
		c.InputName = def.InputName
	}
	if c.InputSize == 0 {
		c.InputSize = def.InputSize
	}
	if c.ChannelOrder == "" {
		c.ChannelOrder = def.ChannelOrder
	}
	if c.OutputName == "" {
		c.OutputName = def.OutputName
	}
	if c.OutputLayout == "" {
		c.OutputLayout = def.OutputLayout
	}
	if c.Normalization.Scale == 0 {
		c.Normalization = def.Normalization
	}
	if len(c.Classes) == 0 {
		c.Classes = def.Classes
	}
}

// Validate checks the closed-set fields and geometry.
func (c *Config) Validate() error {
	if c.InputSize <= 0 {
		return errors.Errorf("input_size must be positive, got %d", c.InputSize)
	}
	switch c.ChannelOrder {
	case OrderCHW, OrderHWC:
	default:
		return errors.Errorf("unknown channel_order %q", c.ChannelOrder)
	}
	if !c.OutputLayout.Valid() {
		return errors.Errorf("unknown output_layout %q", c.OutputLayout)
	}
	if c.Normalization.Scale <= 0 {
		return errors.Errorf("normalization scale must be positive, got %g", c.Normalization.Scale)
	}
	if len(c.Classes) == 0 {
		return errors.New("classes must not be empty")
	}
	return nil
}
