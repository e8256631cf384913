package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/etnz/debcheck/apt"
	"github.com/etnz/debcheck/deb"
	"github.com/etnz/debcheck/installcheck"
	"github.com/etnz/debcheck/manifest"
	"github.com/etnz/debcheck/version"
)

const (
	exitOK = 0
	// exitError reports an operational failure: bad flags, unreadable files, network errors.
	exitError = 1
	// exitFailed reports a negative answer: a package that is not installable,
	// a dependency that cannot be satisfied, a false version comparison.
	exitFailed = 2
)

const defaultStatus = "/var/lib/dpkg/status"

type command struct {
	run   func(args []string, stdout io.Writer, log *logrus.Logger) int
	usage string
}

var commands = map[string]command{
	"check":     {runCheck, "Check whether .deb or .dsc files can be installed"},
	"build-dep": {runBuildDep, "Check whether the build dependencies of .dsc files can be installed"},
	"satisfy":   {runSatisfy, "Check whether a dependency field can be satisfied"},
	"compare":   {runCompare, "Compare two Debian versions"},
	"providers": {runProviders, "List the packages providing a virtual package"},
	"list":      {runList, "List the packages of the universe"},
	"info":      {runInfo, "Print the control fields and the files of a .deb"},
}

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	os.Exit(run(os.Args[1:], os.Stdout, log))
}

func run(args []string, stdout io.Writer, log *logrus.Logger) int {
	if len(args) < 1 {
		printUsage(stdout)
		return exitError
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[0])
		printUsage(stdout)
		return exitError
	}
	return cmd.run(args[1:], stdout, log)
}

// printUsage prints the help message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: debcheck <command> [flags]")
	fmt.Fprintln(w, "\nCommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].usage)
	}
}

// Custom flag types for repeated flags
type arrayFlags []string

// String implements the flag.Value interface.
func (i *arrayFlags) String() string {
	return strings.Join(*i, ", ")
}

// Set implements the flag.Value interface.
func (i *arrayFlags) Set(value string) error {
	*i = append(*i, value)
	return nil
}

type kvFlags map[string]string

// String implements the flag.Value interface.
func (i *kvFlags) String() string {
	s := []string{}
	for k, v := range *i {
		s = append(s, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(s)
	return strings.Join(s, ", ")
}

// Set implements the flag.Value interface.
func (i *kvFlags) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid format, expected KEY=VALUE")
	}
	(*i)[parts[0]] = parts[1]
	return nil
}

// universeFlags are the flags describing the package universe, shared by
// the commands that need one.
type universeFlags struct {
	config  string
	arch    string
	status  string
	indices arrayFlags
	defines kvFlags
	verbose bool
	json    bool
}

func newUniverseFlags(fs *flag.FlagSet) *universeFlags {
	f := &universeFlags{defines: make(kvFlags)}
	fs.StringVar(&f.config, "config", "", "Universe file (.yaml, .json or .toml)")
	fs.StringVar(&f.arch, "arch", "", "Native architecture (default: the config, else the host)")
	fs.StringVar(&f.status, "status", "", "dpkg status database (default: the config, else "+defaultStatus+" when present)")
	fs.Var(&f.indices, "index", "Packages index to add, trusted (repeatable)")
	fs.Var(&f.defines, "define", "Define variables for templates (KEY=VAL)")
	fs.BoolVar(&f.verbose, "v", false, "Log the check events")
	fs.BoolVar(&f.json, "json", false, "Print the results as JSON")
	return f
}

// universe loads the config file, if any, and applies the flag overrides.
func (f *universeFlags) universe() (*manifest.Universe, error) {
	u := &manifest.Universe{}
	if f.config != "" {
		var err error
		if u, err = manifest.NewUniverse(f.config); err != nil {
			return nil, err
		}
	}
	if f.arch != "" {
		u.Architecture = f.arch
	}
	if u.Architecture == "" {
		u.Architecture = hostArchitecture()
	}
	if f.status != "" {
		u.Status = f.status
	}
	if u.Status == "" && f.config == "" {
		if _, err := os.Stat(defaultStatus); err == nil {
			u.Status = defaultStatus
		}
	}
	for _, idx := range f.indices {
		u.Indices = append(u.Indices, manifest.Index{Path: idx, Trusted: true})
	}
	if len(f.defines) > 0 && u.Defines == nil {
		u.Defines = make(map[string]string)
	}
	for k, v := range f.defines {
		u.Defines[k] = v
	}
	return u, nil
}

func (f *universeFlags) options(log *logrus.Logger) manifest.Options {
	if f.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return manifest.Options{
		Log:         log,
		Listener:    func(e fmt.Stringer) { log.Debug(e.String()) },
		GitHubToken: os.Getenv("GITHUB_TOKEN"),
	}
}

func (f *universeFlags) listener(log *logrus.Logger) installcheck.Listener {
	return func(e fmt.Stringer) { log.Debug(e.String()) }
}

// hostArchitecture maps the Go architecture to the dpkg one.
func hostArchitecture() string {
	switch runtime.GOARCH {
	case "386":
		return "i386"
	case "arm":
		return "armhf"
	case "ppc64le":
		return "ppc64el"
	}
	return runtime.GOARCH
}

// report is the JSON rendering of a check.
type report struct {
	Package         string   `json:"package"`
	Version         string   `json:"version"`
	Architecture    string   `json:"architecture"`
	Source          bool     `json:"source,omitempty"`
	Installable     bool     `json:"installable"`
	Kind            string   `json:"kind,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	NeedInstall     []string `json:"need_install,omitempty"`
	Conflicts       []string `json:"conflicts,omitempty"`
	Install         []string `json:"install,omitempty"`
	Remove          []string `json:"remove,omitempty"`
	Unauthenticated []string `json:"unauthenticated,omitempty"`
	// BuildDeps is the path of the written build dependencies metapackage.
	BuildDeps string `json:"build_deps,omitempty"`
}

func newReport(c *installcheck.Candidate, res *installcheck.Result, changes installcheck.Changes) report {
	r := report{
		Package:      c.Name,
		Version:      c.Version,
		Architecture: c.Architecture,
		Source:       c.Source,
		Installable:  res.OK,
		Reason:       res.FailureReason,
		NeedInstall:  res.NeedInstall,
		Conflicts:    res.InstalledConflicts,
	}
	if !res.OK {
		r.Kind = installcheck.Reason(res.Err).String()
		return r
	}
	r.Install = changes.Install
	r.Remove = changes.Remove
	r.Unauthenticated = changes.Unauthenticated
	return r
}

func (r report) print(w io.Writer) {
	name := fmt.Sprintf("%s %s (%s)", r.Package, r.Version, r.Architecture)
	if r.Source {
		name = "build-deps of " + name
	}
	if !r.Installable {
		fmt.Fprintf(w, "%s: not installable (%s)\n", name, r.Kind)
		for _, line := range strings.Split(r.Reason, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
		return
	}
	fmt.Fprintf(w, "%s: installable\n", name)
	if len(r.Install) > 0 {
		fmt.Fprintf(w, "  install: %s\n", strings.Join(r.Install, " "))
	}
	if len(r.Remove) > 0 {
		fmt.Fprintf(w, "  remove: %s\n", strings.Join(r.Remove, " "))
	}
	if len(r.Unauthenticated) > 0 {
		fmt.Fprintf(w, "  WARNING: unauthenticated: %s\n", strings.Join(r.Unauthenticated, " "))
	}
	if r.BuildDeps != "" {
		fmt.Fprintf(w, "  wrote %s\n", r.BuildDeps)
	}
}

func runCheck(args []string, stdout io.Writer, log *logrus.Logger) int {
	return check("check", args, stdout, log, false)
}

func runBuildDep(args []string, stdout io.Writer, log *logrus.Logger) int {
	return check("build-dep", args, stdout, log, true)
}

// check checks the packages given as arguments, or the packages of the
// config file when there is none. Every package is checked against the
// universe as built, without the marks of the previous ones.
func check(name string, args []string, stdout io.Writer, log *logrus.Logger, sourceOnly bool) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	uf := newUniverseFlags(fs)
	var outDir string
	if sourceOnly {
		fs.StringVar(&outDir, "o", "", "Write a build dependencies metapackage of every installable source package to this directory")
	}
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	u, err := uf.universe()
	if err != nil {
		log.Error(err)
		return exitError
	}
	if fs.NArg() > 0 {
		u.Packages = fs.Args()
		u.Releases = nil
	}
	opts := uf.options(log)
	ctx := context.Background()

	cache, err := u.Build(ctx, opts)
	if err != nil {
		log.Error(err)
		return exitError
	}
	candidates, err := u.Candidates(ctx, opts)
	if err != nil {
		log.Error(err)
		return exitError
	}
	if len(candidates) == 0 {
		log.Error("no package to check")
		return exitError
	}
	logBroken(log, cache)

	code := exitOK
	var reports []report
	for _, c := range candidates {
		if sourceOnly && !c.Source {
			log.Errorf("%s is not a source package", c.Name)
			return exitError
		}
		cache.Clear()
		ch := installcheck.New(cache, c, installcheck.Options{Listener: uf.listener(log)})
		var res *installcheck.Result
		if c.Source {
			res = ch.CheckSource()
		} else {
			res = ch.Check()
		}
		r := newReport(c, res, ch.RequiredChanges())
		if !res.OK {
			code = exitFailed
		} else if outDir != "" {
			if r.BuildDeps, err = writeBuildDeps(outDir, c); err != nil {
				log.Error(err)
				return exitError
			}
		}
		reports = append(reports, r)
	}

	if uf.json {
		if err := printJSON(stdout, reports); err != nil {
			log.Error(err)
			return exitError
		}
		return code
	}
	for _, r := range reports {
		r.print(stdout)
	}
	return code
}

// writeBuildDeps writes the "<source>-build-deps" metapackage of a source
// candidate: it depends on the build dependencies and conflicts with the
// build conflicts, so that installing it with apt installs them.
func writeBuildDeps(dir string, c *installcheck.Candidate) (string, error) {
	pkg := &deb.Package{Metadata: deb.Metadata{
		Package:      c.Name + "-build-deps",
		Version:      c.Version,
		Architecture: c.Architecture,
		Maintainer:   "debcheck <debcheck@localhost>",
		Description:  "build dependencies for " + c.Name + "\n " + c.Description,
		Section:      "devel",
		Priority:     "optional",
		Depends:      relationEntries(c.Depends()),
		Conflicts:    relationEntries(c.Conflicts()),
	}}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, pkg.StandardFilename())
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := pkg.WriteTo(f); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, f.Close()
}

func relationEntries(groups []deb.OrGroup) []string {
	entries := make([]string, len(groups))
	for i, g := range groups {
		entries[i] = g.String()
	}
	return entries
}

// logBroken warns about the packages already broken in the universe: any
// check fails with a broken cache while they are.
func logBroken(log *logrus.Logger, cache *apt.Cache) {
	broken := cache.Broken()
	names := make([]string, 0, len(broken))
	for name := range broken {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		log.WithField("package", name).Warn(broken[name])
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSatisfy(args []string, stdout io.Writer, log *logrus.Logger) int {
	fs := flag.NewFlagSet("satisfy", flag.ContinueOnError)
	uf := newUniverseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if fs.NArg() != 1 {
		log.Error("usage: debcheck satisfy [flags] 'dependency field'")
		return exitError
	}

	u, err := uf.universe()
	if err != nil {
		log.Error(err)
		return exitError
	}
	cache, err := u.Build(context.Background(), uf.options(log))
	if err != nil {
		log.Error(err)
		return exitError
	}

	c := &installcheck.Candidate{Name: "debcheck-satisfy", Version: "0", Architecture: "all"}
	ch := installcheck.New(cache, c, installcheck.Options{Listener: uf.listener(log)})
	ok, err := ch.SatisfyDependsString(fs.Arg(0))
	if err != nil {
		log.Error(err)
		return exitError
	}
	changes := ch.RequiredChanges()
	r := struct {
		Satisfiable     bool     `json:"satisfiable"`
		Reason          string   `json:"reason,omitempty"`
		NeedInstall     []string `json:"need_install,omitempty"`
		Install         []string `json:"install,omitempty"`
		Unauthenticated []string `json:"unauthenticated,omitempty"`
	}{ok, ch.FailureReason(), ch.MissingDeps(), changes.Install, changes.Unauthenticated}

	switch {
	case uf.json:
		if err := printJSON(stdout, r); err != nil {
			log.Error(err)
			return exitError
		}
	case ok:
		fmt.Fprintln(stdout, "satisfiable")
		if len(r.Install) > 0 {
			fmt.Fprintf(stdout, "  install: %s\n", strings.Join(r.Install, " "))
		}
		if len(r.Unauthenticated) > 0 {
			fmt.Fprintf(stdout, "  WARNING: unauthenticated: %s\n", strings.Join(r.Unauthenticated, " "))
		}
	default:
		fmt.Fprintf(stdout, "not satisfiable\n  %s\n", strings.ReplaceAll(r.Reason, "\n", "\n  "))
	}
	if !ok {
		return exitFailed
	}
	return exitOK
}

// compareOps maps the operators of dpkg --compare-versions and of the
// relationship fields to the comparison results they accept.
var compareOps = map[string]func(int) bool{
	"lt": func(c int) bool { return c < 0 },
	"le": func(c int) bool { return c <= 0 },
	"eq": func(c int) bool { return c == 0 },
	"ne": func(c int) bool { return c != 0 },
	"ge": func(c int) bool { return c >= 0 },
	"gt": func(c int) bool { return c > 0 },
}

func runCompare(args []string, stdout io.Writer, log *logrus.Logger) int {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	a := fs.Args()

	var v1, op, v2 string
	switch len(a) {
	case 2:
		v1, v2 = a[0], a[1]
	case 3:
		v1, op, v2 = a[0], a[1], a[2]
	default:
		log.Error("usage: debcheck compare VERSION [OP] VERSION")
		return exitError
	}
	for _, v := range []string{v1, v2} {
		if _, err := version.Parse(v); err != nil {
			log.Error(err)
			return exitError
		}
	}
	cmp := version.Compare(v1, v2)

	if op == "" {
		sym := map[int]string{-1: "<", 0: "=", 1: ">"}[cmp]
		fmt.Fprintf(stdout, "%s %s %s\n", v1, sym, v2)
		return exitOK
	}
	holds, ok := compareOps[op]
	if !ok {
		rel, err := version.ParseRelation(op)
		if err != nil || rel == version.RelationNone {
			log.Errorf("unknown operator %q", op)
			return exitError
		}
		holds = rel.Holds
	}
	if !holds(cmp) {
		return exitFailed
	}
	return exitOK
}

func runProviders(args []string, stdout io.Writer, log *logrus.Logger) int {
	fs := flag.NewFlagSet("providers", flag.ContinueOnError)
	uf := newUniverseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if fs.NArg() != 1 {
		log.Error("usage: debcheck providers [flags] NAME")
		return exitError
	}
	cache, code := buildCache(uf, log)
	if cache == nil {
		return code
	}

	name := fs.Arg(0)
	if cache.IsKnown(name) {
		fmt.Fprintf(stdout, "%s is a real package\n", name)
		return exitOK
	}
	providers := cache.ProvidersOf(name)
	if uf.json {
		if err := printJSON(stdout, providers); err != nil {
			log.Error(err)
			return exitError
		}
	} else {
		for _, p := range providers {
			v, _ := cache.CandidateVersion(p)
			fmt.Fprintf(stdout, "%s %s\n", p, v)
		}
	}
	if len(providers) == 0 {
		return exitFailed
	}
	return exitOK
}

// listing is the JSON rendering of a universe entry.
type listing struct {
	Package   string `json:"package"`
	Installed string `json:"installed,omitempty"`
	Candidate string `json:"candidate,omitempty"`
	Trusted   bool   `json:"trusted"`
}

func runList(args []string, stdout io.Writer, log *logrus.Logger) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	uf := newUniverseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	cache, code := buildCache(uf, log)
	if cache == nil {
		return code
	}

	var entries []listing
	for _, name := range cache.Search(fs.Arg(0)) {
		e := listing{Package: name, Trusted: cache.IsTrusted(name)}
		e.Installed, _ = cache.InstalledVersion(name)
		e.Candidate, _ = cache.CandidateVersion(name)
		entries = append(entries, e)
	}
	if uf.json {
		if err := printJSON(stdout, entries); err != nil {
			log.Error(err)
			return exitError
		}
		return exitOK
	}
	for _, e := range entries {
		installed := e.Installed
		if installed == "" {
			installed = "(none)"
		}
		fmt.Fprintf(stdout, "%s installed: %s candidate: %s\n", e.Package, installed, e.Candidate)
	}
	return exitOK
}

func buildCache(uf *universeFlags, log *logrus.Logger) (*apt.Cache, int) {
	u, err := uf.universe()
	if err != nil {
		log.Error(err)
		return nil, exitError
	}
	cache, err := u.Build(context.Background(), uf.options(log))
	if err != nil {
		log.Error(err)
		return nil, exitError
	}
	return cache, exitOK
}

func runInfo(args []string, stdout io.Writer, log *logrus.Logger) int {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return exitError
	}
	if fs.NArg() != 1 {
		log.Error("usage: debcheck info FILE.deb")
		return exitError
	}
	f, err := os.Open(fs.Arg(0))
	if err != nil {
		log.Error(err)
		return exitError
	}
	defer f.Close()
	pkg, err := deb.NewPackage(f)
	if err != nil {
		log.Error(err)
		return exitError
	}
	fmt.Fprint(stdout, pkg.Metadata.Paragraph(0))
	fmt.Fprintln(stdout)
	for _, file := range pkg.Filelist() {
		fmt.Fprintln(stdout, file)
	}
	return exitOK
}
