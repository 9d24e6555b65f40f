// Package inference - Inference sessions.
package inference

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/trailsense/go-detect/inference/providers"
	"github.com/trailsense/go-detect/models"
)

// Session owns one onnxruntime session bound to a backend on a device.
// Sessions are not safe for concurrent use; each worker holds its own.
type Session struct {
	Model    models.Config
	Backend  providers.Backend
	DeviceID int

	session *ort.DynamicAdvancedSession
}

// NewSession builds a session for the model on the given backend.
//
// Arguments:
//   - model: Validated model configuration, Path resolved by the caller.
//   - backend: The execution provider to enable.
//   - deviceID: The device the provider should target.
//
// Returns:
//   - *Session: The ready session.
//   - error: Session options or model loading error if any.
func NewSession(model models.Config, backend providers.Backend, deviceID int) (*Session, error) {
	if _, err := os.Stat(model.Path); err != nil {
		return nil, errors.Wrapf(err, "model %s", model.Path)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "creating session options")
	}
	defer options.Destroy()

	// Zero lets onnxruntime size its pools to the machine.
	if err := options.SetIntraOpNumThreads(0); err != nil {
		return nil, errors.Wrap(err, "setting intra-op threads")
	}
	if err := options.SetInterOpNumThreads(0); err != nil {
		return nil, errors.Wrap(err, "setting inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return nil, errors.Wrap(err, "setting optimization level")
	}

	if err := providers.DefaultProvider(backend, deviceID).Apply(options); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(
		model.Path,
		[]string{model.InputName},
		[]string{model.OutputName},
		options,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "creating session on %s", backend)
	}

	return &Session{
		Model:    model,
		Backend:  backend,
		DeviceID: deviceID,
		session:  session,
	}, nil
}

// NewSessionWithFallback tries each backend in order and returns the first
// session that builds. Backends come from the provider manager, most capable
// first, so a missing runtime library degrades instead of failing the device.
func NewSessionWithFallback(model models.Config, backends []providers.Backend, deviceID int) (*Session, error) {
	if len(backends) == 0 {
		return nil, errors.Errorf("no backends for device %d", deviceID)
	}

	var lastErr error
	for _, backend := range backends {
		session, err := NewSession(model, backend, deviceID)
		if err == nil {
			return session, nil
		}
		lastErr = err
		log.WithFields(log.Fields{
			"backend": backend,
			"device":  deviceID,
		}).WithError(err).Warn("Backend failed, falling back")
	}
	return nil, errors.Wrapf(lastErr, "all backends failed on device %d", deviceID)
}

// Warmup runs a single zero batch through the model so provider
// initialization and kernel selection happen before the first real batch.
func (s *Session) Warmup() error {
	frame := make([]float32, 3*s.Model.InputSize*s.Model.InputSize)
	_, err := s.Run([][]float32{frame})
	return errors.Wrap(err, "warm-up inference")
}

// Run executes one batch. Each element of batch is a preprocessed frame
// tensor laid out per the model's channel order; the output is one raw
// detection tensor per frame, in batch order.
func (s *Session) Run(batch [][]float32) ([][]float32, error) {
	flat, err := flattenBatch(batch)
	if err != nil {
		return nil, err
	}
	if len(batch[0]) != 3*s.Model.InputSize*s.Model.InputSize {
		return nil, errors.Errorf("frame tensor has %d values, model %dx%d expects %d",
			len(batch[0]), s.Model.InputSize, s.Model.InputSize, 3*s.Model.InputSize*s.Model.InputSize)
	}

	shape := s.inputShape(int64(len(batch)))
	input, err := s.newInputTensor(shape, flat)
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, errors.Wrapf(err, "inference on %s", s.Backend)
	}
	defer outputs[0].Destroy()

	raw, err := outputData(outputs[0])
	if err != nil {
		return nil, err
	}
	return splitFrames(raw, len(batch))
}

// Close releases the native session. Safe to call more than once.
func (s *Session) Close() {
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
}

func (s *Session) inputShape(batch int64) ort.Shape {
	size := int64(s.Model.InputSize)
	if s.Model.ChannelOrder == models.OrderHWC {
		return ort.NewShape(batch, size, size, 3)
	}
	return ort.NewShape(batch, 3, size, size)
}

func (s *Session) newInputTensor(shape ort.Shape, flat []float32) (ort.Value, error) {
	if s.Model.Half {
		tensor, err := ort.NewCustomDataTensor(shape, halfEncode(flat), ort.TensorElementDataTypeFloat16)
		if err != nil {
			return nil, errors.Wrap(err, "creating float16 input tensor")
		}
		return tensor, nil
	}
	tensor, err := ort.NewTensor(shape, flat)
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	return tensor, nil
}

// outputData copies the output tensor contents into Go memory, decoding
// float16 models back to float32.
func outputData(value ort.Value) ([]float32, error) {
	switch tensor := value.(type) {
	case *ort.Tensor[float32]:
		data := tensor.GetData()
		out := make([]float32, len(data))
		copy(out, data)
		return out, nil
	case *ort.CustomDataTensor:
		return halfDecode(tensor.GetData())
	default:
		return nil, errors.Errorf("unsupported output tensor type %T", value)
	}
}
