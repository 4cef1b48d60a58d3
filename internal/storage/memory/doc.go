// Package memory provides in-process implementations of the canteen
// repositories. They back the unit tests of the domain and handler packages.
package memory
