// Package solver holds the nonlinear and linear solution policies a group
// can be given. Nonlinear policies decide how a group's children are run
// until their residuals vanish; linear policies solve a group's block of the
// derivative system.
package solver
