// Package media assembles rendered segments into the final deliverable,
// either through ffmpeg or, for offline runs, by concatenating the textual
// stand-ins.
package media
