// Package apt is an in-memory APT cache: the package universe an
// installability check runs against.
//
// Installed versions come from the dpkg status database (ReadStatus),
// available versions from Packages indices, read locally (ReadPackages) or
// fetched from repositories (Fetcher), optionally authenticated by a signed
// InRelease file (VerifyInRelease).
//
// A Cache selects a candidate version per package and records install and
// delete marks, resolving dependencies first-fit the way APT does without a
// problem resolver.
package apt
