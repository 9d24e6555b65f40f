package export

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/trailsense/go-detect/pipeline"
)

// Resume reads an earlier CSV export and returns the set of file paths it
// already covers, so a restarted run can skip them. A missing file means
// nothing to resume. A row truncated by a crash yields a path no scan
// will match, and that file is simply processed again.
func Resume(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, pipeline.Tag(pipeline.ClassConfig, errors.Wrapf(err, "reading resume csv %s", path))
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	done := make(map[string]bool)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pipeline.Tag(pipeline.ClassConfig, errors.Wrapf(err, "parsing resume csv %s", path))
		}
		if len(record) == 0 || record[0] == "" || record[0] == csvHeader[0] {
			continue
		}
		done[record[0]] = true
	}
	return done, nil
}
