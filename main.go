// Command go-detect runs a detection model over a folder of camera trap
// media and exports per-file detections as CSV and JSON.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/trailsense/go-detect/config"
	"github.com/trailsense/go-detect/export"
	"github.com/trailsense/go-detect/frames"
	"github.com/trailsense/go-detect/inference"
	"github.com/trailsense/go-detect/inference/providers"
	"github.com/trailsense/go-detect/media"
	"github.com/trailsense/go-detect/models"
	"github.com/trailsense/go-detect/models/postprocess"
	"github.com/trailsense/go-detect/pipeline"
	"github.com/trailsense/go-detect/profiler"
)

const progressInterval = 10 * time.Second

func main() {
	cfg := config.Default()
	var (
		devicesSpec string
		deviceMap   string
		preset      string
		modelPath   string
		imgsz       int
	)
	flag.StringVar(&cfg.Input, "input", "", "Folder of camera trap media to process")
	flag.StringVar(&preset, "preset", "", "Built-in model preset: megadetector-v5a (default) or megadetector-v5b")
	flag.StringVar(&cfg.ModelConfig, "model-config", "", "YAML model description (default: built-in MegaDetector v5)")
	flag.StringVar(&modelPath, "model", "", "ONNX model path, overriding the model config")
	flag.IntVar(&imgsz, "imgsz", 0, "Model input size override")
	flag.StringVar(&devicesSpec, "devices", cfg.Devices.String(), "Device worker map, e.g. \"0:2,1:1\"")
	flag.StringVar(&deviceMap, "device-map", "", "YAML device worker map file, overriding -devices")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "Inference batch size")
	flag.Float64Var(&cfg.Confidence, "conf", cfg.Confidence, "Detection confidence threshold")
	flag.Float64Var(&cfg.IoU, "iou", cfg.IoU, "NMS IoU threshold")
	flag.IntVar(&cfg.TopK, "topk", cfg.TopK, "Retained detections per frame, 0 for unlimited")
	flag.IntVar(&cfg.MaxFrames, "max-frames", cfg.MaxFrames, "Max frames per video, 0 for all")
	flag.BoolVar(&cfg.IFrameOnly, "iframe", cfg.IFrameOnly, "Decode video keyframes only")
	flag.StringVar(&cfg.OutputCSV, "csv", cfg.OutputCSV, "CSV export path, empty to disable")
	flag.StringVar(&cfg.OutputJSON, "json", cfg.OutputJSON, "JSON export path, empty to disable")
	flag.IntVar(&cfg.Checkpoint, "checkpoint", cfg.Checkpoint, "Export flush interval in files, 0 for end of run only")
	flag.BoolVar(&cfg.Resume, "resume", false, "Skip files already present in the CSV export")
	flag.BoolVar(&cfg.Reprobe, "reprobe", false, "Ignore cached execution provider probes")
	flag.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Execution provider cache directory")
	flag.IntVar(&cfg.ExtractWorkers, "extract-workers", cfg.ExtractWorkers, "Concurrent media decoders")
	flag.DurationVar(&cfg.IdleFlush, "idle-flush", cfg.IdleFlush, "Partial batch flush timeout")
	flag.BoolVar(&cfg.Timing, "timing", false, "Print per-worker batch latency stats at exit")
	flag.BoolVar(&cfg.Profile, "profile", false, "Log runtime memory and goroutine peaks at exit")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	devices, err := config.ParseDevices(devicesSpec)
	if err != nil {
		log.WithError(err).Fatal("Invalid -devices")
	}
	if deviceMap != "" {
		if devices, err = config.LoadDeviceMap(deviceMap); err != nil {
			log.WithError(err).Fatal("Invalid device map")
		}
	}
	cfg.Devices = devices

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	model, err := loadModel(cfg, preset, modelPath, imgsz)
	if err != nil {
		log.WithError(err).Fatal("Invalid model configuration")
	}

	if err := run(cfg, model); err != nil {
		log.WithError(err).Fatal("Run failed")
	}
}

// loadModel resolves the model configuration: a named preset or a YAML
// file if given, the built-in MegaDetector defaults otherwise, with CLI
// overrides applied on top.
func loadModel(cfg config.Config, preset, modelPath string, imgsz int) (models.Config, error) {
	if preset != "" && cfg.ModelConfig != "" {
		return models.Config{}, errors.New("-preset and -model-config are mutually exclusive")
	}
	model, err := models.Preset(preset)
	if err != nil {
		return models.Config{}, err
	}
	if cfg.ModelConfig != "" {
		if model, err = models.Load(cfg.ModelConfig); err != nil {
			return models.Config{}, err
		}
	}
	if modelPath != "" {
		model.Path = modelPath
	}
	if imgsz > 0 {
		model.InputSize = imgsz
	}
	return model, model.Validate()
}

// run executes one full pass. Per-file failures are recorded in the
// export and the summary; only failures that prevent the run from
// starting, or that would lose results, come back as an error.
func run(cfg config.Config, model models.Config) error {
	start := time.Now()
	runID := uuid.NewString()
	logger := log.WithField("run", runID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Profile {
		sampler := &profiler.Sampler{}
		sampler.Start()
		defer sampler.Stop()
	}

	var skip map[string]bool
	if cfg.Resume {
		var err error
		if skip, err = export.Resume(cfg.OutputCSV); err != nil {
			return err
		}
		logger.WithField("files", len(skip)).Info("Resuming previous export")
	}

	scan, err := (&media.Scanner{Root: cfg.Input, Skip: skip}).Scan()
	if err != nil {
		return pipeline.Tag(pipeline.ClassConfig, err)
	}
	logger.WithFields(log.Fields{
		"items":       len(scan.Items),
		"skipped":     scan.Skipped,
		"unsupported": scan.Unsupported,
	}).Info("Scanned input folder")

	if hasVideos(scan.Items) {
		if err := frames.CheckTools(); err != nil {
			return pipeline.Tag(pipeline.ClassConfig, err)
		}
	}

	sink, err := buildSink(cfg, model, runID)
	if err != nil {
		return err
	}
	if len(scan.Items) == 0 {
		logger.Info("Nothing to process")
		return sink.Close()
	}

	if err := inference.EnsureRuntime(); err != nil {
		return err
	}
	defer inference.Shutdown()

	workers, sessions, err := buildWorkers(cfg, model)
	if err != nil {
		sink.Close()
		return err
	}
	defer func() {
		for _, s := range sessions {
			s.Close()
		}
	}()

	results, progress := pipeline.Run(ctx, scan.Items, workers, pipeline.Options{
		Model: model,
		Post: postprocess.Config{
			Layout:     model.OutputLayout,
			Classes:    len(model.Classes),
			Confidence: float32(cfg.Confidence),
			NMS:        postprocess.NMSConfig{IoUThreshold: float32(cfg.IoU), TopK: cfg.TopK},
		},
		BatchSize:      cfg.BatchSize,
		IdleFlush:      cfg.IdleFlush,
		ExtractWorkers: cfg.ExtractWorkers,
		Video:          frames.ExtractOptions{MaxFrames: cfg.MaxFrames, IFrameOnly: cfg.IFrameOnly},
		Timing:         cfg.Timing,
	})
	go progress.Report(ctx, progressInterval)

	type failure struct {
		path   string
		reason string
	}
	var failures []failure
	for result := range results {
		if result.Status == media.StatusFailed {
			failures = append(failures, failure{path: result.Item.Path, reason: pipeline.Reason(result.Err)})
		}
		if err := sink.Append(result); err != nil {
			sink.Close()
			return err
		}
	}
	if err := sink.Close(); err != nil {
		return err
	}

	for _, f := range failures {
		logger.WithField("path", f.path).Warn("File failed: " + f.reason)
	}
	snapshot := progress.Snapshot()
	logger.WithFields(log.Fields{
		"succeeded": snapshot.FilesDone,
		"failed":    snapshot.FilesFailed,
		"frames":    snapshot.Frames,
		"batches":   snapshot.Batches,
		"elapsed":   time.Since(start).Round(time.Millisecond).String(),
	}).Info("Run complete")
	return nil
}

func hasVideos(items []media.Item) bool {
	for _, item := range items {
		if item.Kind == media.KindVideo {
			return true
		}
	}
	return false
}

// buildWorkers resolves each device's usable backends and builds one
// session per worker. A device whose sessions cannot be built is
// disabled and the run continues on the rest; losing every device is
// fatal.
func buildWorkers(cfg config.Config, model models.Config) (map[int][]pipeline.Runner, []*inference.Session, error) {
	manager := providers.NewManager(cfg.CacheDir)
	manager.Reprobe = cfg.Reprobe

	workers := make(map[int][]pipeline.Runner)
	var sessions []*inference.Session
	for _, device := range cfg.Devices.IDs() {
		backends, err := manager.Resolve(device)
		if err != nil {
			return nil, sessions, err
		}
		log.WithFields(log.Fields{"device": device, "backends": backends}).Info("Resolved execution providers")

		runners, built, err := buildDevice(model, backends, device, cfg.Devices[device])
		if err != nil {
			if len(cfg.Devices) == 1 {
				return nil, sessions, pipeline.Tag(pipeline.ClassConfig, err)
			}
			log.WithError(err).WithField("device", device).Error("Disabling device")
			continue
		}
		workers[device] = runners
		sessions = append(sessions, built...)
	}
	if len(workers) == 0 {
		return nil, sessions, pipeline.Tag(pipeline.ClassConfig, errors.New("no usable device remains"))
	}
	return workers, sessions, nil
}

func buildDevice(model models.Config, backends []providers.Backend, device, count int) ([]pipeline.Runner, []*inference.Session, error) {
	runners := make([]pipeline.Runner, 0, count)
	sessions := make([]*inference.Session, 0, count)
	for i := 0; i < count; i++ {
		session, err := inference.NewSessionWithFallback(model, backends, device)
		if err == nil {
			err = session.Warmup()
		}
		if err != nil {
			for _, s := range sessions {
				s.Close()
			}
			return nil, nil, err
		}
		runners = append(runners, session)
		sessions = append(sessions, session)
	}
	return runners, sessions, nil
}

func buildSink(cfg config.Config, model models.Config, runID string) (*export.Sink, error) {
	var writers []export.Writer
	if cfg.OutputCSV != "" {
		if err := ensureParent(cfg.OutputCSV); err != nil {
			return nil, err
		}
		w, err := export.NewCSV(cfg.OutputCSV, model, cfg.Resume)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	if cfg.OutputJSON != "" {
		if err := ensureParent(cfg.OutputJSON); err != nil {
			return nil, err
		}
		if cfg.Resume {
			w, err := export.ResumeJSON(cfg.OutputJSON, model, runID)
			if err != nil {
				return nil, err
			}
			writers = append(writers, w)
		} else {
			writers = append(writers, export.NewJSON(cfg.OutputJSON, model, runID))
		}
	}
	return &export.Sink{Writers: writers, Interval: cfg.Checkpoint}, nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pipeline.Tag(pipeline.ClassExport, errors.Wrapf(err, "creating export directory %s", dir))
	}
	return nil
}
