// Package diag defines the diagnostic model shared by the linker and the
// resolution phases.
//
// Producers emit through a Reporter; BagReporter collects into a Bag which the
// CLI sorts and renders with FormatShort. Diagnostics never carry fixes: a
// failed resolution installs an inert placeholder in the tree instead, and the
// diagnostic points at the narrowest node that was replaced.
//
// Code ranges:
//
//	RES3xxx  name, type and calculation resolution
//	IO4xxx   manifest loading
//	LNK5xxx  module aliasing, refinement and heights
//	OBS6xxx  timings
package diag
