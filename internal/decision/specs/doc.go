// Package specs holds the registered release specifications: one small type
// per acceptance policy, each evaluated independently by the decision maker.
//
// Specifications that do not apply to a release accept it. Default builds the
// full set from Dependencies.
package specs
