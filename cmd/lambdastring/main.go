// lambdastring CLI - inspect closure declaration lines and forwarding code
package main

import (
	"flag"
	"fmt"
	"os"

	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/lambdastring/manifest"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output (debug logging)")
	configDir := flag.String("C", ".", "Directory to search upward for lambdastring.toml")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lambdastring [options] <command> [args...]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  line <Type|file.class> <method> <desc>   Print the first source line of a method\n")
		fmt.Fprintf(os.Stderr, "  forward [-verify] [-trace] <program>     Compile a recorded program and print the replay method\n")
		fmt.Fprintf(os.Stderr, "  sample [-o file]                         Write a sample recorded program\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lambdastring line com.example.Holder 'lambda$makeRun$0' '()V'\n")
		fmt.Fprintf(os.Stderr, "  lambdastring line build/classes/com/example/Holder.class 'lambda$makeRun$0' '()V'\n")
		fmt.Fprintf(os.Stderr, "  lambdastring sample -o prog.cbor && lambdastring forward -verify prog.cbor\n")
		fmt.Fprintf(os.Stderr, "\nClasspath entries come from lambdastring.toml and %s.\n", manifest.ClasspathEnv)
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		m = manifest.Default()
	}
	if *verbose && m.Log.Verbosity < 2 {
		m.Log.Verbosity = 2
	}
	m.ConfigureLogging()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "line":
		err = handleLineCommand(args[1:], m)
	case "forward":
		err = handleForwardCommand(args[1:], m)
	case "sample":
		err = handleSampleCommand(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
