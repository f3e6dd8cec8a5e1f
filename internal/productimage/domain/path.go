package domain

import (
	"strconv"
	"strings"

	"github.com/gosimple/slug"
)

// DefaultPrefix is the storage directory of product images.
const DefaultPrefix = "products"

// ResolvePath returns "products/<slug(title)>/<imageID>.<ext>", where ext is
// the text between the first and second dot of the file's base name
// ("photo.tar.gz" yields "tar"). Titles without any slug-able character fall
// back to the product id.
func ResolvePath(title string, productID, imageID int64, filename string) (string, error) {
	return ResolvePathWithPrefix(DefaultPrefix, title, productID, imageID, filename)
}

func ResolvePathWithPrefix(prefix, title string, productID, imageID int64, filename string) (string, error) {
	ext, err := Extension(filename)
	if err != nil {
		return "", err
	}

	dir := slug.Make(title)
	if dir == "" {
		dir = strconv.FormatInt(productID, 10)
	}

	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "/" + dir + "/" + strconv.FormatInt(imageID, 10) + "." + ext, nil
}

// Extension returns the first-dot extension of filename's base name.
func Extension(filename string) (string, error) {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	_, rest, ok := strings.Cut(base, ".")
	if !ok {
		return "", ErrInvalidFilename
	}
	ext, _, _ := strings.Cut(rest, ".")
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.ContainsAny(ext, " \t") {
		return "", ErrInvalidFilename
	}
	return ext, nil
}
