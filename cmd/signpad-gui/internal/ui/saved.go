package ui

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"strings"

	"signpad/internal/raster"
)

var errNoImagePath = errors.New("enter the path of a signature image first")

// signatureStore is the part of the signature library the sidebar writes to.
type signatureStore interface {
	Save(ctx context.Context, name string, img image.Image) error
	Delete(ctx context.Context, name string) error
}

// saveSignature decodes the image at path and stores it under name,
// replacing a signature of the same name. An empty name falls back to the
// file name without its extension. It returns the name used.
func saveSignature(ctx context.Context, lib signatureStore, name, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errNoImagePath
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	img, err := raster.DecodeFile(path)
	if err != nil {
		return "", err
	}
	if err := lib.Save(ctx, name, img); err != nil {
		return "", err
	}
	return name, nil
}
