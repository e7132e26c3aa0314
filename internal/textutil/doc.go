// Package textutil provides filename sanitization for downloaded reports and
// diagnostic artifacts.
package textutil
