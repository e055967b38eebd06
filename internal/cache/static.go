package cache

import (
	"io/fs"

	"github.com/debemdeboas/pages-admin/internal/util"
)

// staticETags maps a public asset path to the content hash used as its ETag.
var staticETags = NewCache[string, string]()

// HashStatic records an ETag for every file in files, served under urlPrefix.
func HashStatic(files fs.FS, urlPrefix string) (int, error) {
	n := 0
	err := fs.WalkDir(files, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(files, path)
		if err != nil {
			return err
		}
		staticETags.Set(urlPrefix+path, util.ContentHash(data))
		n++
		return nil
	})
	return n, err
}

func StaticETag(path string) (string, bool) {
	return staticETags.Get(path)
}
