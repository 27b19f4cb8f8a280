// Package textutil holds the string helpers shared by release parsing,
// identification and library naming: diacritic-insensitive clean names,
// fuzzy similarity and filesystem-safe path segments.
package textutil
