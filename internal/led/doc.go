// Package led runs light effects on the RGB indicator.
//
// An Engine owns the current effect. Start supersedes whatever is running:
// the old run is cancelled and fully exits before the new one writes to the
// pins, and every write carries the generation of the run that issued it so
// a stale run can never touch the hardware.
package led
