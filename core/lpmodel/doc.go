// Package lpmodel builds small linear and mixed-integer programs and solves
// them with the gonum simplex implementation. Binary variables are handled by
// a depth-first branch and bound over the LP relaxation. Models can be written
// out in CPLEX LP format for auditing.
package lpmodel
