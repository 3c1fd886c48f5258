package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
)

func readCommand(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var (
		nread      int64
		addrStr    string
		idOnly     bool
		statusOnly bool
		outFile    string
	)
	fs.Int64Var(&nread, "n", 256, "number of bytes to read (0: whole device)")
	fs.StringVar(&addrStr, "addr", "0", "start address")
	fs.BoolVar(&idOnly, "id", false, "just print the flash ID")
	fs.BoolVar(&statusOnly, "s", false, "just print the flash status register")
	fs.StringVar(&outFile, "o", "", "output file (default: hexdump)")
	start, count := partitionFlags(fs)
	fs.Parse(args)

	drv, name, closer, err := openFlash()
	if err != nil {
		fatalf("%v", err)
	}
	defer closer()

	if statusOnly {
		sr, err := drv.Status()
		if err != nil {
			fatalf("read flash status register failed: %v", err)
		}
		fmt.Println(sr)
		return
	}
	if idOnly {
		info, err := drv.Info()
		if err != nil {
			fatalf("read flash ID failed: %v", err)
		}
		fmt.Printf("%X\t%s\n", info.ID, name)
		return
	}

	dev := maybePartition(drv, *start, *count)
	if nread == 0 {
		info, err := dev.Info()
		if err != nil {
			fatalf("read flash info failed: %v", err)
		}
		nread = info.Capacity()
	}

	data := make([]byte, nread)
	if err := dev.Read(parseAddr(addrStr), data); err != nil {
		fatalf("read flash failed: %v", err)
	}
	if outFile == "" {
		fmt.Println(hex.Dump(data))
		return
	}
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		fatalf("write file failed: %v", err)
	}
}
