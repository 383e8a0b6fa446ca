// Command vhdimount is a thin front door for mounting a VHD/VHDX image
// as a local file. It validates and opens the image the same way
// vhdiinfo does, but stops short of exposing it through a filesystem:
// FUSE/Dokan bindings are an external collaborator this repository
// does not vendor, so the binary fails loud instead of no-op'ing.
package main

import (
	"flag"
	"fmt"
	"os"

	"vhdi"
)

const (
	progName = "vhdimount"
	version  = "0.1.0"
)

func usage() {
	fmt.Fprintf(os.Stderr, `%s - mount a VHD/VHDX image (front door only)

Usage: %s [-h] [-v] [-V] [-X options] image mountpoint

  -h        print this help and exit
  -v        verbose
  -V        print version and exit
  -X        FUSE/Dokan mount options (accepted for command-line
            compatibility with the original tool; unused)

image is validated and opened, but this binary does not include the
FUSE/Dokan mount glue needed to actually expose it at mountpoint.
`, progName, progName)
}

func main() {
	flag.Usage = usage
	_ = flag.String("X", "", "mount options (unused; kept for CLI compatibility)")
	verbose := flag.Bool("v", false, "verbose")
	printVersion := flag.Bool("V", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Println(progName, version)
		return
	}
	if flag.NArg() != 2 {
		usage()
		os.Exit(1)
	}

	imagePath, mountpoint := flag.Arg(0), flag.Arg(1)

	img, err := vhdi.OpenFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", progName, err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "%s: opened %s (%d bytes), target mountpoint %s\n",
			progName, imagePath, img.MediaSize(), mountpoint)
	}

	fmt.Fprintf(os.Stderr, "%s: mount glue not included: this build can open and "+
		"validate %s but has no FUSE/Dokan backend to expose it at %s\n",
		progName, imagePath, mountpoint)
	os.Exit(1)
}
