// Package optimiser plans depot charging one charging day at a time.
//
// Engine builds and solves the linear program of a single day for a given
// Formulation. Ladder walks the formulations from the nominal plan down to
// the relaxed ones and finally Magic charging, which never fails. Driver
// rolls the ladder over a multi-day horizon, carrying each vehicle's
// relative charge from one day to the next.
package optimiser
