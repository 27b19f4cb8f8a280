// Package language normalizes ISO 639 language codes and detects the
// language a release title advertises.
package language
