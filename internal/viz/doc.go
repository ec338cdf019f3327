// Package viz renders run output for the terminal: a styled run summary,
// asciigraph line plots of plot-file datasets and braille phase portraits
// of one variable against another.
package viz
