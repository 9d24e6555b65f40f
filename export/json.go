package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/trailsense/go-detect/media"
	"github.com/trailsense/go-detect/models"
	"github.com/trailsense/go-detect/pipeline"
)

// Report is the top-level JSON document: a run header followed by one
// entry per processed file, in scan order.
type Report struct {
	RunID     string       `json:"run_id"`
	Model     string       `json:"model"`
	StartedAt time.Time    `json:"started_at"`
	Files     []FileReport `json:"files"`
}

// FileReport is one processed file.
type FileReport struct {
	Path        string        `json:"file_path"`
	CaptureTime *time.Time    `json:"capture_time,omitempty"`
	Status      string        `json:"status"`
	Failure     string        `json:"failure,omitempty"`
	Label       string        `json:"label"`
	Frames      []FrameReport `json:"frames,omitempty"`
}

// FrameReport is one sampled frame of a file.
type FrameReport struct {
	Index      int               `json:"frame_index"`
	Keyframe   bool              `json:"keyframe,omitempty"`
	Detections []DetectionReport `json:"detections"`
}

// DetectionReport is one retained detection in source pixel coordinates.
type DetectionReport struct {
	Label      string  `json:"class_label"`
	Class      int     `json:"class_id"`
	Confidence float32 `json:"confidence"`
	XMin       float32 `json:"x_min"`
	YMin       float32 `json:"y_min"`
	XMax       float32 `json:"x_max"`
	YMax       float32 `json:"y_max"`
}

// JSON accumulates the report in memory and rewrites the destination on
// every flush, so the file on disk is always a complete document.
type JSON struct {
	path   string
	model  models.Config
	report Report
}

// NewJSON creates a writer for path. runID stamps the report header.
func NewJSON(path string, model models.Config, runID string) *JSON {
	return &JSON{
		path:  path,
		model: model,
		report: Report{
			RunID:     runID,
			Model:     model.Path,
			StartedAt: time.Now().UTC(),
		},
	}
}

// ResumeJSON creates a writer seeded with the files of an earlier report
// at path, so a resumed run extends it rather than replacing it. The
// header is restamped for the new run. A missing file starts fresh.
func ResumeJSON(path string, model models.Config, runID string) (*JSON, error) {
	w := NewJSON(path, model, runID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return w, nil
	}
	if err != nil {
		return nil, pipeline.Tag(pipeline.ClassConfig, errors.Wrap(err, "reading json export"))
	}
	var prior Report
	if err := json.Unmarshal(data, &prior); err != nil {
		return nil, pipeline.Tag(pipeline.ClassConfig, errors.Wrapf(err, "parsing json export %s", path))
	}
	w.report.Files = prior.Files
	return w, nil
}

// Append records one file entry.
func (j *JSON) Append(result pipeline.FileResult) error {
	entry := FileReport{
		Path:        result.Item.Path,
		CaptureTime: result.Item.CaptureTime,
		Status:      result.Status.String(),
		Label:       result.Label,
	}
	if result.Err != nil {
		entry.Failure = pipeline.Reason(result.Err)
	}
	if result.Status != media.StatusFailed {
		for _, frame := range result.Frames {
			fr := FrameReport{
				Index:      frame.Index,
				Keyframe:   frame.Keyframe,
				Detections: make([]DetectionReport, 0, len(frame.Detections)),
			}
			for _, d := range frame.Detections {
				fr.Detections = append(fr.Detections, DetectionReport{
					Label:      j.model.Label(d.Class),
					Class:      d.Class,
					Confidence: d.Score,
					XMin:       d.Box.X1,
					YMin:       d.Box.Y1,
					XMax:       d.Box.X2,
					YMax:       d.Box.Y2,
				})
			}
			entry.Frames = append(entry.Frames, fr)
		}
	}
	j.report.Files = append(j.report.Files, entry)
	return nil
}

// Flush rewrites the destination through a temp file in the same
// directory plus a rename, so a crash mid-write never corrupts an
// earlier checkpoint.
func (j *JSON) Flush() error {
	data, err := json.MarshalIndent(j.report, "", "  ")
	if err != nil {
		return pipeline.Tag(pipeline.ClassExport, errors.Wrap(err, "encoding json export"))
	}

	tmp, err := os.CreateTemp(filepath.Dir(j.path), filepath.Base(j.path)+".tmp-*")
	if err != nil {
		return pipeline.Tag(pipeline.ClassExport, errors.Wrap(err, "staging json export"))
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return pipeline.Tag(pipeline.ClassExport, errors.Wrap(err, "writing json export"))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return pipeline.Tag(pipeline.ClassExport, errors.Wrap(err, "writing json export"))
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		os.Remove(tmp.Name())
		return pipeline.Tag(pipeline.ClassExport, errors.Wrap(err, "replacing json export"))
	}
	return nil
}

// Close performs the final flush.
func (j *JSON) Close() error { return j.Flush() }
