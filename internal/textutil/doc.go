// Package textutil sanitizes card and track names for use as file and
// directory names under the staging directory.
package textutil
