package controller

import (
	"fmt"
	"path/filepath"
	"strings"
)

// splitName separates a file name into base and extension, the extension
// including its dot. A leading dot does not start an extension, so ".bashrc"
// has none while ".config.yaml" has ".yaml".
func splitName(name string) (base, ext string) {
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return name, ""
	}
	return name[:dot], name[dot:]
}

// candidateName returns name with n inserted before the extension:
// "photo.png", 2 -> "photo2.png".
func candidateName(name string, n int) string {
	base, ext := splitName(name)
	return fmt.Sprintf("%s%d%s", base, n, ext)
}

// freeName picks the destination for name inside dir: name itself when free,
// otherwise the candidate with the smallest n >= 1 that does not exist.
func freeName(dir, name string, exists func(string) (bool, error)) (string, error) {
	target := filepath.Join(dir, name)
	taken, err := exists(target)
	if err != nil {
		return "", err
	}
	for n := 1; taken; n++ {
		target = filepath.Join(dir, candidateName(name, n))
		if taken, err = exists(target); err != nil {
			return "", err
		}
	}
	return target, nil
}
