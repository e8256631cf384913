// Package deb reads the Debian package formats the installability checker
// works from.
//
// It operates in-memory on io.Reader streams and does not depend on dpkg:
//   - control paragraphs (Paragraph, ReadParagraphs) for control files,
//     Packages indices and the dpkg status database;
//   - relationship fields (ParseDepends, ParseSrcDepends) into OrGroup lists;
//   - binary packages (.deb) with gzip, xz, bzip2, lzma or uncompressed
//     members (NewPackage), and writing metapackages (Package.WriteTo);
//   - source control files (.dsc), clearsigned or not (NewSourcePackage).
package deb
