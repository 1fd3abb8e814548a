// Package catalog is the service API over releases, installs and bindings.
//
// Release and install declarations are validated here before they reach
// the store. Creating an install seeds bindings for every resource the
// inventory reports as matching; deleting one removes its bindings. Both
// run in a single store transaction together with the notifications they
// produce.
package catalog
