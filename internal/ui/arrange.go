// Package ui holds the UI implementations that do not need a terminal,
// and the option handling every UI shares.
package ui

import (
	"errors"
	"reflect"

	"github.com/tatianab/storyloop/internal/rng"
	"github.com/tatianab/storyloop/internal/story"
)

var (
	ErrNoOptions        = errors.New("userSelect needs at least one option")
	ErrNoEnabledOptions = errors.New("userSelect needs at least one enabled option")
)

// Arrange returns the options in display order and the index highlighted
// first. RandomSort shuffles through r so replays see the same order.
func Arrange(r *rng.Rng, options []story.Option, cfg *story.SelectConfig) ([]story.Option, int, error) {
	if len(options) == 0 {
		return nil, 0, ErrNoOptions
	}
	if cfg == nil {
		cfg = &story.SelectConfig{}
	}

	arranged := options
	if cfg.RandomSort {
		arranged = rng.Shuffle(r, options)
	} else {
		arranged = append([]story.Option(nil), options...)
	}

	first := -1
	for i, opt := range arranged {
		if opt.Disabled {
			continue
		}
		if first < 0 {
			first = i
		}
		if cfg.Preselected != nil && reflect.DeepEqual(opt.Value, cfg.Preselected) {
			return arranged, i, nil
		}
	}
	if first < 0 {
		return nil, 0, ErrNoEnabledOptions
	}
	return arranged, first, nil
}

// Enabled returns the indexes of the options that can be chosen.
func Enabled(options []story.Option) []int {
	var idx []int
	for i, opt := range options {
		if !opt.Disabled {
			idx = append(idx, i)
		}
	}
	return idx
}
