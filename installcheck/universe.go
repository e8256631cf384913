package installcheck

// View answers questions about the package universe. Every call reflects
// the current state, including the marks made by a running check.
type View interface {
	// IsKnown reports whether the name has real versions.
	IsKnown(name string) bool
	// IsVirtual reports whether the name has providers and no real version.
	IsVirtual(name string) bool
	// ProvidersOf returns the packages whose candidate version provides
	// name. It is empty when name has real versions.
	ProvidersOf(name string) []string
	InstalledVersion(name string) (string, bool)
	CandidateVersion(name string) (string, bool)
	IsMarkedInstall(name string) bool
	IsEssential(name string) bool
	// Architecture is the native architecture of the system.
	Architecture() string
}

// Universe is a View the checker can plan changes in. Implementations are
// assumed single-writer: a Checker must not run concurrently with another
// user of the same Universe.
type Universe interface {
	View
	// MarkInstall marks the candidate of a package, and whatever it needs,
	// for installation. auto flags it as a dependency.
	MarkInstall(name string, auto bool) error
	// MarkDelete marks a package for removal.
	MarkDelete(name string) error
	// BrokenCount returns the number of packages with unmet dependencies
	// or conflicts once the marks are applied.
	BrokenCount() int
	// Clear discards every mark.
	Clear()
	// Changes returns the names marked for installation and for removal.
	Changes() (install, remove []string)
	// IsTrusted reports whether the candidate comes from an authenticated
	// origin.
	IsTrusted(name string) bool
}
