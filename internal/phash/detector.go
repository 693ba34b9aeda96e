// Package phash gates re-extraction on perceptual image change.
//
// Each window's last captured frame is reduced to a 64-bit average hash
// (8x8 downsample, luminance, mean threshold). A window counts as
// changed when the Hamming distance to its stored hash reaches the
// configured threshold.
package phash

import (
	"fmt"
	"image"
	"os"
	"sync"

	_ "image/jpeg" // capture helper output formats
	_ "image/png"

	"github.com/corona10/goimagehash"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

// DefaultThreshold is the default Hamming distance that counts as change.
const DefaultThreshold = 8

// Detector tracks one perceptual hash per window.
type Detector struct {
	mu        sync.Mutex
	threshold int
	hashes    map[domain.WindowID]*goimagehash.ImageHash
}

// NewDetector creates a detector with the given Hamming threshold.
// Non-positive thresholds fall back to the default.
func NewDetector(threshold int) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{
		threshold: threshold,
		hashes:    make(map[domain.WindowID]*goimagehash.ImageHash),
	}
}

// HasChanged reports whether the image at imagePath differs perceptually
// from the window's previous capture. The first observation of a window
// is always a change. The stored hash is only advanced on change, so
// slow drift accumulates until it crosses the threshold.
func (d *Detector) HasChanged(id domain.WindowID, imagePath string) (bool, error) {
	img, err := loadImage(imagePath)
	if err != nil {
		return false, err
	}

	hash, err := goimagehash.AverageHash(img)
	if err != nil {
		return false, fmt.Errorf("%w: average hash: %v", domain.ErrPlatform, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, ok := d.hashes[id]
	if !ok {
		d.hashes[id] = hash
		return true, nil
	}

	dist, err := prev.Distance(hash)
	if err != nil {
		return false, fmt.Errorf("%w: hash distance: %v", domain.ErrPlatform, err)
	}

	if dist >= d.threshold {
		d.hashes[id] = hash
		return true, nil
	}
	return false, nil
}

// Evict drops the stored hash for a destroyed window.
func (d *Detector) Evict(id domain.WindowID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.hashes, id)
}

// Threshold returns the configured Hamming threshold.
func (d *Detector) Threshold() int {
	return d.threshold
}

// DifferenceHash computes the 9x8 adjacent-pair difference hash of an
// image file. Not used on the hot path; provided for callers that want
// a gradient-based fingerprint instead of the average hash.
func DifferenceHash(imagePath string) (*goimagehash.ImageHash, error) {
	img, err := loadImage(imagePath)
	if err != nil {
		return nil, err
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil, fmt.Errorf("%w: difference hash: %v", domain.ErrPlatform, err)
	}
	return hash, nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open capture: %v", domain.ErrExtractionFailed, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode capture: %v", domain.ErrExtractionFailed, err)
	}
	return img, nil
}
