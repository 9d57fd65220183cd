// Command udpbd-server serves a host directory tree to a PlayStation 2
// running Open PS2 Loader as a virtual, read-only exFAT block device over
// UDPBD. Argument parsing stays here; the core protocol and image packages
// never see a flag.
package main

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/vexfatbd/udpbd-server/protocol"
	"github.com/vexfatbd/udpbd-server/vexfat"
)

// oplSkeletonDirs are the standard empty directories OPL expects at the top
// of its tree (the volume root, or the --prefix directory when one is
// given), created alongside the served tree (which itself lives under DVD).
var oplSkeletonDirs = []string{"APPS", "ART", "CD", "CFG", "CHT", "LNG", "THM", "VMC"}

func main() {
	app := &cli.App{
		Name:      "udpbd-server",
		Usage:     "serve a directory tree to a PS2 running OPL as a virtual exFAT UDPBD device",
		ArgsUsage: "HOST_DIRECTORY",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "OPL subdirectory name to nest the skeleton and served tree under (default: volume root)",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "override the UDP listen address (default 0.0.0.0:48573); mainly for tests",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func run(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("expected exactly one argument: the host directory to serve", 1)
	}
	hostDir := c.Args().First()
	prefix := c.String("prefix")

	entries, err := walkHostTree(hostDir)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to walk %s: %s", hostDir, err), 1)
	}
	entries = append(entries, oplSkeletonEntries()...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	// vexfat.New and protocol.ListenAt already wrap their failures in
	// ErrImageBuildFailed / ErrBindFailed respectively.
	image, err := vexfat.New(hostDir, entries, prefix)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	server, err := listenFor(c.String("listen"), image)
	if err != nil {
		image.Close()
		return cli.Exit(err.Error(), 1)
	}
	defer server.Close()

	log.Printf("udpbd-server: serving %s (%d sectors) on %s", hostDir, image.SectorCount(), server.LocalAddr())
	return server.Run()
}

func listenFor(override string, image *vexfat.Image) (*protocol.Server, error) {
	if override == "" {
		return protocol.Listen(image)
	}
	addr, err := net.ResolveUDPAddr("udp4", override)
	if err != nil {
		return nil, err
	}
	return protocol.ListenAt(addr, image)
}

// oplSkeletonEntries builds the empty top-level OPL directories and the DVD
// directory the walked host tree is nested under.
func oplSkeletonEntries() []vexfat.Entry {
	entries := make([]vexfat.Entry, 0, len(oplSkeletonDirs)+1)
	for _, name := range oplSkeletonDirs {
		entries = append(entries, vexfat.Entry{Path: name, IsFile: false})
	}
	entries = append(entries, vexfat.Entry{Path: "DVD", IsFile: false})
	return entries
}

// walkHostTree enumerates hostDir, producing one Entry per file and
// directory nested under DVD, sorted ascending by path as vexfat.New
// requires. The walker hands the core plain descriptors and knows nothing
// about exFAT.
func walkHostTree(hostDir string) ([]vexfat.Entry, error) {
	var entries []vexfat.Entry

	err := filepath.Walk(hostDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == hostDir {
			return nil
		}
		rel, err := filepath.Rel(hostDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		entries = append(entries, vexfat.Entry{
			Path:     "DVD/" + rel,
			HostPath: rel,
			IsFile:   !info.IsDir(),
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
