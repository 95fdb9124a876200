package reporter

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/gommon/log"
)

//
// SurveyRecords builds one anonymous record per file in dir whose name
// starts with nodeID. Ids are st0, st1, ... over the files that could be
// read; names are blank. Unreadable files are logged and skipped.
//
func SurveyRecords(dir, nodeID string, logger *log.Logger) []ResultRecord {

	var records []ResultRecord

	for _, e := range listPrefixed(dir, nodeID) {
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logFileError(logger, path, err)
			continue
		}
		records = append(records, ResultRecord{
			StudentID:   "st" + strconv.Itoa(len(records)),
			ResultsFile: data,
		})
	}

	return records
}

func logFileError(logger *log.Logger, path string, err error) {
	if os.IsNotExist(err) {
		logger.Errorf("missing file: %s", path)
		return
	}
	logger.Errorf("error copying file: %s: %v", path, err)
}
