// Command nvmflash programs JEDEC SPI NOR flash chips behind an FT2232H
// bridge.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func fatalUsage(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	nvmflash <command> [arguments]

Commands:
	info	  print bridge and flash chip details
	read	  read flash memory
	write	  write flash memory
	erase	  erase flash memory
	protect	  write-protect a flash range
	unprotect remove write protection from a flash range
`)
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	switch cmd := flag.Arg(0); cmd {
	case "info":
		infoCommand(flag.Args()[1:])
	case "read":
		readCommand(flag.Args()[1:])
	case "write":
		writeCommand(flag.Args()[1:])
	case "erase":
		eraseCommand(flag.Args()[1:])
	case "protect":
		protectCommand(flag.Args()[1:], true)
	case "unprotect":
		protectCommand(flag.Args()[1:], false)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
}

// parseAddr accepts decimal or 0x-prefixed addresses.
func parseAddr(s string) int64 {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		fatalUsage("bad address %q: %v", s, err)
	}
	return v
}
