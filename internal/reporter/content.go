package reporter

import (
	"os"
	"path/filepath"

	"github.com/labstack/gommon/log"
)

// name of the fallback archive next to an unzipped resource
const repoZip = "repo.zip"

// directory a file resource is unpacked into
const unzipDirName = "_unzipped_"

//
// ResourceManager gives access to the files of a repository entry
//
type ResourceManager interface {
	// path of the entry's stored file, "" when unknown
	FileResource(entry RepositoryEntry) string
	// directory the entry is unpacked into
	UnzipDir(entry RepositoryEntry) (string, error)
}

//
// DirResources keeps every resource in <root>/<resourceID>/
// with its unpacked copy in <root>/<resourceID>/_unzipped_
//
type DirResources struct {
	Root string
}

func (d DirResources) FileResource(entry RepositoryEntry) string {
	if entry.ResourceName == "" {
		return ""
	}
	return filepath.Join(d.Root, entry.ResourceID, entry.ResourceName)
}

func (d DirResources) UnzipDir(entry RepositoryEntry) (string, error) {
	return filepath.Join(d.Root, entry.ResourceID, unzipDirName), nil
}

//
// ContentResolver reads the content package (the packaged test) of an entry
//
type ContentResolver struct {
	resources ResourceManager
	logger    *log.Logger
}

func NewContentResolver(resources ResourceManager, logger *log.Logger) *ContentResolver {
	return &ContentResolver{resources: resources, logger: logger}
}

//
// Path picks, in order, the stored file resource, <parent-of-unzip-dir>/<resourceName>
// and <parent-of-unzip-dir>/repo.zip. The last candidate is returned even when
// it does not exist so the read error names it.
//
func (c *ContentResolver) Path(entry RepositoryEntry) string {

	if p := c.resources.FileResource(entry); p != "" && isFile(p) {
		return p
	}

	unzipped, err := c.resources.UnzipDir(entry)
	if err != nil {
		c.logger.Errorf("cannot resolve unzip dir of resource %s: %v", entry.ResourceID, err)
		return ""
	}
	parent := filepath.Dir(unzipped)

	if entry.ResourceName != "" {
		named := filepath.Join(parent, entry.ResourceName)
		if isFile(named) {
			return named
		}
	}

	return filepath.Join(parent, repoZip)
}

//
// Read returns the content package bytes. Missing or unreadable files
// are logged and give nil.
//
func (c *ContentResolver) Read(entry RepositoryEntry) []byte {
	path := c.Path(entry)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logFileError(c.logger, path, err)
		return nil
	}
	return data
}
