package book

import (
	"os"
	"path/filepath"
	"strings"
)

// EffectivePath returns where a book declared at declared lives on disk.
// With an empty root the declared path is used unchanged. Otherwise leading
// separators are stripped so that absolute declarations land under root.
func EffectivePath(declared, root string) string {
	if root == "" {
		return declared
	}
	return filepath.Join(root, strings.TrimLeft(declared, string(os.PathSeparator)))
}
