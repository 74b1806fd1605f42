// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

/*
Package opc reads and writes OPC (Open Packaging Conventions) ZIP packages
such as the Ultimaker Format Package (UFP) and 3MF. Resources are addressed
by slash-separated virtual paths; the bookkeeping entries OPC consumers
expect ([Content_Types].xml, _rels/.rels and the metadata document) are
derived from the resource set and never edited by hand.

A Package owns one session at a time over a caller stream. A session is
either read-only or write-only; there is no in-place update. The caller
stream is never closed by the package.

Virtual paths (summary):
  - "\" is accepted as separator, leading and trailing separators are dropped;
  - "dir/file", "/dir/file" and "\dir\file" address the same resource;
  - empty paths and empty inner segments are rejected with ErrInvalidPath.

# Writing

Create a package in any io.Writer. Content is finalized on Close:

	pkg, err := opc.New(opc.Options{Profile: opc.ProfileUFP()})
	if err != nil {
	    return err
	}
	if err := pkg.OpenStream(out, "", opc.WriteOnly); err != nil {
	    return err
	}
	if err := pkg.SetData(map[string][]byte{
	    "/3D/model.gcode": gcode,
	}); err != nil {
	    return err
	}
	if err := pkg.SetMetadata(map[string]string{
	    "/3D/model.gcode/print_time": "3600",
	    "/Metadata/printer":          "S5",
	}); err != nil {
	    return err
	}
	return pkg.Close()

Large resources can be streamed through a handle; bytes are committed when
the handle closes:

	w, err := pkg.OpenWriter("/Metadata/thumbnail.png")
	if err != nil {
	    return err
	}
	_, _ = io.Copy(w, thumbnail)
	if err := w.Close(); err != nil {
	    return err
	}

# Reading

Open an existing package from bytes.Reader, *os.File or any io.Reader:

	if err := pkg.OpenStream(f, "", opc.ReadOnly); err != nil {
	    return err
	}
	defer pkg.Close()

	paths, _ := pkg.ListPaths()
	data, _ := pkg.GetData(paths...)
	meta, _ := pkg.GetMetadata("/3D/model.gcode")
	_, _ = data, meta

Metadata keys nested under a resource path are attached to that resource;
keys under the profile metadata prefix ("/Metadata" by default) and keys
with no owning resource are global. GetScopeMetadata selects entries by
scope, GetMetadata("/") returns every entry.

# Extracting

Extract resources to a directory (parallel workers). Path sanitization is
enabled by default; set RawNames to keep names as stored:

	if err := pkg.Extract(ctx, "out/", opc.ExtractOptions{MaxWorkers: 4}); err != nil {
	    return err
	}

# Profiles

Profiles describe bookkeeping paths, content types and compression rules.
Built-in profiles are ProfileUFP, ProfileOPC and Profile3MF; custom ones
load from YAML:

	profile, err := opc.LoadProfile("profile.yaml")
	if err != nil {
	    return err
	}
	pkg, err := opc.New(opc.Options{Profile: profile})

Compression rules use gitignore-style patterns (github.com/woozymasta/pathrules);
"!" negates a rule and the last matching rule wins.
*/
package opc
