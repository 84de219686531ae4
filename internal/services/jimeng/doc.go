// Package jimeng renders keyframe images and first/last-frame conditioned
// video segments through the Jimeng synthesis API. A deterministic Mock
// stands in when runs are offline.
package jimeng
