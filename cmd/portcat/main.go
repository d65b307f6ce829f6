// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command portcat concatenates its input arguments to stdout through
// the port subsystem, the way cmd/dump concatenates ion-encoded input
// to JSON. It exists to exercise port, port/fdio, port/zport,
// port/digest, port/registry, and config end to end from one place.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/corvid-scheme/schemeport/config"
	"github.com/corvid-scheme/schemeport/port"
	"github.com/corvid-scheme/schemeport/port/digest"
	"github.com/corvid-scheme/schemeport/port/fdio"
	"github.com/corvid-scheme/schemeport/port/registry"
	"github.com/corvid-scheme/schemeport/port/zport"
)

func main() {
	cfgPath := flag.String("config", "", "path to a YAML config file")
	compress := flag.Bool("z", false, "zstd-compress stdout")
	showDigest := flag.Bool("digest", false, "print a BLAKE2b-512 digest of the output to stderr")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	logger := log.New(os.Stderr, "portcat: ", log.LstdFlags)
	reg := registry.New(0x9e3779b97f4a7c15, 0xc2b2ae3d27d4eb4f)
	reg.Logger = logger
	reg.SetMaxEntries(cfg.MaxRegisteredPorts)

	out, err := openOutput(cfg, *compress)
	if err != nil {
		logger.Fatal(err)
	}
	var outID = reg.Register("stdout", out)
	defer reg.Forget(outID)

	var digestPort *digest.Port
	finalOut := out
	if *showDigest {
		digestPort, err = digest.NewWriter(out)
		if err != nil {
			logger.Fatal(err)
		}
		finalOut = digestPort.Port
	}

	args := flag.Args()
	if len(args) == 0 {
		args = []string{"-"}
	}
	for _, arg := range args {
		if err := catOne(cfg, arg, finalOut); err != nil {
			logger.Fatalf("%s: %s", arg, err)
		}
	}

	if err := finalOut.Flush(); err != nil {
		logger.Fatal(err)
	}
	if err := finalOut.Close(); err != nil {
		logger.Fatal(err)
	}
	if *showDigest {
		fmt.Fprintf(os.Stderr, "%x\n", digestPort.Sum())
	}
}

func openOutput(cfg config.Config, compress bool) (*port.Port, error) {
	if compress {
		return zport.OpenCompressedOutput(fdio.New(1), cfg.DefaultBufferSize, cfg.BufferingMode(), zport.Fast)
	}
	return fdio.OutputFromFD(1, cfg.DefaultBufferSize, cfg.BufferingMode()), nil
}

func catOne(cfg config.Config, arg string, out *port.Port) error {
	var in *port.Port
	if arg == "-" {
		in = fdio.InputFromFD(0, cfg.DefaultBufferSize)
	} else {
		var err error
		in, err = fdio.OpenInput(arg, cfg.DefaultBufferSize)
		if err != nil {
			return err
		}
		defer in.Close()
	}

	buf := make([]byte, 32*1024)
	for {
		n, err := in.GetBlock(buf)
		if n > 0 {
			if werr := out.PutBlock(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if n == 0 {
			return nil
		}
	}
}
