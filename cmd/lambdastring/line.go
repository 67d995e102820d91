package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/chazu/lambdastring/classfile"
	"github.com/chazu/lambdastring/lambdameta"
	"github.com/chazu/lambdastring/manifest"
)

// handleLineCommand processes `lambdastring line`. A first argument ending in
// .class is read directly; anything else is a binary type name resolved
// through the configured classpath.
func handleLineCommand(args []string, m *manifest.Manifest) error {
	if len(args) != 3 {
		return errors.New("usage: lambdastring line <Type|file.class> <method> <desc>")
	}
	target, name, desc := args[0], args[1], args[2]

	var (
		line int
		ok   bool
		err  error
	)
	if strings.HasSuffix(target, ".class") {
		data, readErr := os.ReadFile(target)
		if readErr != nil {
			return readErr
		}
		line, ok, err = classfile.FirstLine(data, name, desc)
	} else {
		line, ok, err = lineFromClasspath(m, target, name, desc)
	}
	if err != nil {
		return err
	}

	if !ok {
		fmt.Printf("%s.%s%s: no line information\n", target, name, desc)
		return nil
	}
	fmt.Printf("%s.%s%s: line %d\n", target, name, desc, line)
	return nil
}

func lineFromClasspath(m *manifest.Manifest, typeName, name, desc string) (int, bool, error) {
	chain, err := m.BuildLocator()
	if err != nil {
		return 0, false, err
	}
	defer chain.Close()

	md, err := lambdameta.NewMetadata(
		lambdameta.Type{Name: typeName},
		lambdameta.Type{Name: typeName, Locator: chain},
		lambdameta.MethodDescriptor{Name: name, Desc: desc},
		0, 0,
	)
	if err != nil {
		return 0, false, err
	}
	return md.DeclarationLine()
}
