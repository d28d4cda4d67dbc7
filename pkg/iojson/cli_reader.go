package iojson

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// FileReader decodes one JSON document of type T from the file named by its
// --file flag, or from stdin when the flag is unset.
type FileReader[T any] struct {
	path  string
	stdin *os.File
}

func (fr *FileReader[T]) Flag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "file",
		Aliases:     []string{"f"},
		Usage:       "read JSON from `PATH` instead of stdin",
		TakesFile:   true,
		Destination: &fr.path,
	}
}

// Source names where Read takes its input from.
func (fr *FileReader[T]) Source() string {
	if fr.path == "" {
		return "stdin"
	}
	return fr.path
}

func (fr *FileReader[T]) Read() (T, error) {
	var out T

	src, err := fr.open()
	if err != nil {
		return out, err
	}
	defer func() { _ = src.Close() }()

	if err := json.NewDecoder(src).Decode(&out); err != nil {
		return out, fmt.Errorf("decode %s: %w", fr.Source(), err)
	}
	return out, nil
}

func (fr *FileReader[T]) open() (io.ReadCloser, error) {
	if fr.path != "" {
		f, err := os.Open(fr.path)
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		return f, nil
	}

	in := fr.stdin
	if in == nil {
		in = os.Stdin
	}
	if term.IsTerminal(int(in.Fd())) {
		return nil, fmt.Errorf("stdin is a terminal; pass --file or pipe JSON in")
	}
	return io.NopCloser(in), nil
}
