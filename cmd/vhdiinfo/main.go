// Command vhdiinfo prints VHD/VHDX descriptor metadata to stdout.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"vhdi"
	"vhdi/guid"
)

const (
	progName = "vhdiinfo"
	version  = "0.1.0"
)

func usage() {
	fmt.Fprintf(os.Stderr, `%s - VHD/VHDX image information tool

Usage: %s [-h] [-v] [-V] source

  -h  print this help and exit
  -v  verbose: also resolve and print any attached parent chain,
      following each parent-filename hint relative to its child's
      own directory
  -V  print version and exit

source is the path to a VHD or VHDX image file.
`, progName, progName)
}

func main() {
	flag.Usage = usage
	verbose := flag.Bool("v", false, "resolve and print the parent chain")
	printVersion := flag.Bool("V", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Println(progName, version)
		return
	}
	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}

	path := flag.Arg(0)
	img, err := vhdi.OpenFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", progName, err)
		os.Exit(1)
	}

	printInfo(os.Stdout, img, 0)

	if *verbose {
		walkParents(os.Stdout, img, path, 1)
		if d := img.Depth(); d > 0 {
			fmt.Fprintf(os.Stdout, "parent chain depth: %d\n", d)
		}
	}
}

// walkParents follows each image's parent-filename hint, resolved
// relative to the directory of childPath, opening and attaching parents one level at a time
// until the chain bottoms out or a parent cannot be resolved.
func walkParents(w *os.File, child *vhdi.Image, childPath string, depth int) {
	hint, ok := child.ParentFilenameUTF8()
	if !ok {
		return
	}

	parentPath := hint
	if !filepath.IsAbs(parentPath) {
		parentPath = filepath.Join(filepath.Dir(childPath), parentPath)
	}

	parent, err := vhdi.OpenFile(parentPath)
	if err != nil {
		fmt.Fprintf(w, "  (parent %q could not be opened: %v)\n", parentPath, err)
		return
	}

	if err := child.AttachParent(parent); err != nil {
		fmt.Fprintf(w, "  (parent %q rejected: %v)\n", parentPath, err)
		return
	}

	printInfo(w, parent, depth)
	walkParents(w, parent, parentPath, depth+1)
}

func printInfo(w *os.File, img *vhdi.Image, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}

	fileType := "VHD"
	if img.FileType() == vhdi.FileTypeVHDX {
		fileType = "VHDX"
	}
	major, minor := img.FormatVersion()

	fmt.Fprintf(w, "%sfile type:        %s (format %d.%d)\n", indent, fileType, major, minor)
	fmt.Fprintf(w, "%sdisk type:        %s\n", indent, diskTypeName(img.DiskType()))
	fmt.Fprintf(w, "%smedia size:       %s\n", indent, humanize.Bytes(img.MediaSize()))
	fmt.Fprintf(w, "%sbytes per sector: %s\n", indent, humanize.Bytes(uint64(img.BytesPerSector())))
	// uuid formats its first three fields big-endian; VHDX identifiers
	// come back little-endian and are swapped before display.
	displayID := func(b [16]byte) string {
		if img.FileType() == vhdi.FileTypeVHDX {
			b = guid.DecodeVHDX(b).EncodeVHD()
		}
		return uuid.UUID(b).String()
	}
	fmt.Fprintf(w, "%sidentifier:       %s\n", indent, displayID(img.Identifier()))

	if parentID, ok := img.ParentIdentifier(); ok {
		fmt.Fprintf(w, "%sparent identifier: %s\n", indent, displayID(parentID))
	}
	if name, ok := img.ParentFilenameUTF8(); ok {
		fmt.Fprintf(w, "%sparent filename:   %s\n", indent, name)
	}
	if code := img.ParentPlatformCode(); code != [4]byte{} {
		fmt.Fprintf(w, "%sparent platform:   %s\n", indent, code)
	}

	if img.FileType() == vhdi.FileTypeVHDX {
		if c := img.Creator(); c != "" {
			fmt.Fprintf(w, "%screator:          %s\n", indent, c)
		}
	} else {
		if app := img.CreatorApplication(); app != [4]byte{} {
			fmt.Fprintf(w, "%screator app:      %s\n", indent, app)
		}
		if host := img.CreatorHostOS(); host != [4]byte{} {
			fmt.Fprintf(w, "%screator host OS:  %s\n", indent, host)
		}
	}
}

func diskTypeName(dt vhdi.DiskType) string {
	switch dt {
	case vhdi.DiskTypeFixed:
		return "fixed"
	case vhdi.DiskTypeDifferential:
		return "differencing"
	default:
		return "dynamic"
	}
}
