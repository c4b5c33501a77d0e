package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cespare/xxhash"
	"golang.org/x/term"

	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/d64"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/disk"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/g64"
	"github.com/FabianRolfMatthiasNoll/C64Emulator/internal/loader"
)

// dumpWidth returns the number of bits per dump line that fit the terminal.
func dumpWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 64
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w < 16 {
		return 64
	}
	// "00000: " prefix, a bracketed highlight and round down to bytes
	n := (w - 10) / 8 * 8
	if n < 8 {
		n = 8
	}
	return n
}

// verify compares the decoded image with the original D64. Sectors the
// original marks as damaged are skipped.
func verify(orig, decoded *d64.Archive) (bad int) {
	for t := 1; t <= orig.NumTracks(); t++ {
		for s := 0; s < d64.SectorsPerTrack(t); s++ {
			if code := orig.ErrorCode(t, s); code != d64.ErrorNone {
				continue
			}
			if !bytes.Equal(orig.Sector(t, s), decoded.Sector(t, s)) {
				log.Printf("verify: track %d sector %d differs", t, s)
				bad++
			}
		}
	}
	return bad
}

func main() {
	in := flag.String("in", "", "input image (.d64/.g64, optionally .gz/.zip/.7z)")
	out := flag.String("out", "", "write the decoded D64 (or G64 with -g64) to path")
	asG64 := flag.Bool("g64", false, "write the GCR surface as G64 instead of decoding to D64")
	check := flag.Bool("verify", false, "decode the encoded surface and compare it with the input D64")
	dump := flag.Int("dump", 0, "dump the bits of this halftrack (1..84)")
	digest := flag.Bool("digest", false, "print an xxhash64 digest of every track")
	gapEven := flag.Int("gap-even", 0, "tail gap after even sectors (0: default)")
	gapOdd := flag.Int("gap-odd", 0, "tail gap after odd sectors (0: default)")
	flag.Parse()

	if *in == "" {
		log.Fatal("-in is required")
	}
	f, err := loader.Load(*in)
	if err != nil {
		log.Fatalf("load: %v", err)
	}
	cfg := disk.EncoderConfig{TailGapEven: *gapEven, TailGapOdd: *gapOdd}
	d, err := f.Disk(cfg)
	if err != nil {
		log.Fatalf("disk: %v", err)
	}
	log.Printf("%s: %v, %d tracks", f.Name, f.Type, d.NumTracks())

	if *digest {
		for t := 1; t <= d.NumTracks(); t++ {
			ht := disk.TrackToHalftrack(disk.Track(t))
			data := d.Halftrack(ht)
			fmt.Printf("track %2d  %5d bits  %016x\n", t, d.BitLength(ht), xxhash.Sum64(data))
		}
	}

	if *dump != 0 {
		ht := disk.Halftrack(*dump)
		if !disk.IsHalftrack(*dump) {
			log.Fatalf("-dump: halftrack %d out of range", *dump)
		}
		fmt.Printf("halftrack %d (track %d), %d bits\n", ht, disk.HalftrackToTrack(ht), d.BitLength(ht))
		if err := d.DumpHalftrack(os.Stdout, ht, 0, -1, -1, dumpWidth()); err != nil {
			log.Fatal(err)
		}
	}

	a, res, err := d.DecodeArchive()
	if err != nil {
		log.Fatalf("decode: %v", err)
	}
	for _, e := range res.Errors {
		log.Printf("%v", &e)
	}
	log.Printf("decoded %d tracks, %d bytes, %d errors", res.NumTracks, res.Bytes, len(res.Errors))

	failed := false
	if *check {
		if f.Type != loader.TypeD64 {
			log.Fatalf("-verify needs a D64 input, got %v", f.Type)
		}
		orig, err := d64.Parse(f.Data)
		if err != nil {
			log.Fatal(err)
		}
		if orig.NumTracks() != a.NumTracks() {
			log.Printf("verify: %d tracks decoded, input has %d", a.NumTracks(), orig.NumTracks())
			failed = true
		} else if bad := verify(orig, a); bad > 0 {
			log.Printf("verify: %d sectors differ", bad)
			failed = true
		} else {
			log.Printf("verify: ok")
		}
	}

	if *out != "" {
		var data []byte
		if *asG64 {
			data = g64.Bytes(d)
		} else {
			data = a.Bytes()
		}
		if err := os.WriteFile(*out, data, 0644); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s (%d bytes)", *out, len(data))
	}

	if failed {
		os.Exit(1)
	}
}
