// Package installcheck decides whether a local Debian package can be
// installed in a package universe, and which packages it needs.
//
// A Checker evaluates a Candidate (built from a .deb or a .dsc) against a
// Universe: the architecture, the version already known, the conflicts with
// installed and to-be-installed packages, then the dependencies. Missing
// dependencies are resolved first-fit: the first alternative of an or-group
// with a suitable candidate version is selected, without backtracking, and
// a virtual package is only resolved when a single package provides it.
package installcheck
