package deb

// ControlField represents a standard field in a Debian control file.
type ControlField string

const (
	FieldPackage       ControlField = "Package"
	FieldVersion       ControlField = "Version"
	FieldArchitecture  ControlField = "Architecture"
	FieldMaintainer    ControlField = "Maintainer"
	FieldDescription   ControlField = "Description"
	FieldSection       ControlField = "Section"
	FieldPriority      ControlField = "Priority"
	FieldHomepage      ControlField = "Homepage"
	FieldEssential     ControlField = "Essential"
	FieldStatus        ControlField = "Status"
	FieldDepends       ControlField = "Depends"
	FieldPreDepends    ControlField = "Pre-Depends"
	FieldRecommends    ControlField = "Recommends"
	FieldSuggests      ControlField = "Suggests"
	FieldEnhances      ControlField = "Enhances"
	FieldConflicts     ControlField = "Conflicts"
	FieldBreaks        ControlField = "Breaks"
	FieldReplaces      ControlField = "Replaces"
	FieldProvides      ControlField = "Provides"
	FieldBuiltUsing    ControlField = "Built-Using"
	FieldSource        ControlField = "Source"
	FieldInstalledSize ControlField = "Installed-Size"

	// Source package (.dsc) fields.
	FieldBinary              ControlField = "Binary"
	FieldBuildDepends        ControlField = "Build-Depends"
	FieldBuildDependsIndep   ControlField = "Build-Depends-Indep"
	FieldBuildDependsArch    ControlField = "Build-Depends-Arch"
	FieldBuildConflicts      ControlField = "Build-Conflicts"
	FieldBuildConflictsIndep ControlField = "Build-Conflicts-Indep"
	FieldBuildConflictsArch  ControlField = "Build-Conflicts-Arch"

	// Fields added by the archive to Packages index stanzas.
	FieldFilename ControlField = "Filename"
	FieldSize     ControlField = "Size"
	FieldSHA256   ControlField = "SHA256"
	FieldMD5sum   ControlField = "MD5sum"
	FieldSHA1     ControlField = "SHA1"
)

// RelationFields lists the control fields holding package relationships,
// in the order they are written to a control file.
var RelationFields = []ControlField{
	FieldDepends,
	FieldPreDepends,
	FieldRecommends,
	FieldSuggests,
	FieldEnhances,
	FieldConflicts,
	FieldBreaks,
	FieldReplaces,
	FieldProvides,
}

// ControlFile represents a standard file found in the control.tar.* archive.
type ControlFile string

const (
	FileControl   ControlFile = "control"
	FileMd5sums   ControlFile = "md5sums"
	FileConffiles ControlFile = "conffiles"
	FilePreinst   ControlFile = "preinst"
	FilePostinst  ControlFile = "postinst"
	FilePrerm     ControlFile = "prerm"
	FilePostrm    ControlFile = "postrm"
	FileConfig    ControlFile = "config"
	FileTriggers  ControlFile = "triggers"
)

// PackageFile represents a standard member of the .deb archive (ar format).
type PackageFile string

const (
	PkgDebianBinary PackageFile = "debian-binary"
	PkgControlTar   PackageFile = "control.tar"
	PkgControlTarGz PackageFile = "control.tar.gz"
	PkgControlTarXz PackageFile = "control.tar.xz"
	PkgDataTar      PackageFile = "data.tar"
	PkgDataTarGz    PackageFile = "data.tar.gz"
	PkgDataTarXz    PackageFile = "data.tar.xz"
	PkgDataTarBz2   PackageFile = "data.tar.bz2"
	PkgDataTarLzma  PackageFile = "data.tar.lzma"
)
