package reporter

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/gommon/log"
)

//
// Locator finds result files under
// <userDataRoot>/<reportingDir>/<username>/<assessmentType>/
//
type Locator struct {
	userDataRoot string
	reportingDir string
	logger       *log.Logger
}

func NewLocator(userDataRoot, reportingDir string, logger *log.Logger) *Locator {
	return &Locator{
		userDataRoot: userDataRoot,
		reportingDir: reportingDir,
		logger:       logger,
	}
}

//
// directory holding one user's results for an assessment type
//
func (l *Locator) Dir(username, assessmentType string) string {
	return filepath.Join(l.userDataRoot, l.reportingDir, username, assessmentType)
}

//
// ResultFile resolves the result file of a user for a node.
// With a non-zero assessmentID the versioned file <nodeID>v<assessmentID>.xml
// is used when it exists, otherwise the most recently modified file whose
// name starts with nodeID. Equal modification times keep the file that
// sorts first by name.
//
// returns the path and true, or "" and false when nothing matches
//
func (l *Locator) ResultFile(username, assessmentType, nodeID string, assessmentID int64) (string, bool) {

	dir := l.Dir(username, assessmentType)

	if assessmentID != 0 {
		versioned := filepath.Join(dir, nodeID+"v"+strconv.FormatInt(assessmentID, 10)+".xml")
		if isFile(versioned) {
			return versioned, true
		}
	}

	if newest, ok := newestPrefixed(dir, nodeID); ok {
		return newest, true
	}

	l.logger.Errorf("there is no file for this test and student %s assessmentType: %s nodeId: %s assessmentId: %d",
		username, assessmentType, nodeID, assessmentID)

	return "", false
}

//
// true if any result file exists for the node in the user's directory
//
func (l *Locator) HasAny(username, assessmentType, nodeID string) bool {
	return len(listPrefixed(l.Dir(username, assessmentType), nodeID)) > 0
}

//
// regular files in dir whose names start with prefix, sorted by name.
// A missing or unreadable directory yields nothing.
//
func listPrefixed(dir, prefix string) []os.DirEntry {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var matched []os.DirEntry
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		matched = append(matched, e)
	}
	return matched
}

func newestPrefixed(dir, prefix string) (string, bool) {
	var newest string
	var newestMod int64
	for _, e := range listPrefixed(dir, prefix) {
		info, err := e.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime().UnixNano()
		if newest == "" || mod > newestMod {
			newest = filepath.Join(dir, e.Name())
			newestMod = mod
		}
	}
	return newest, newest != ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
