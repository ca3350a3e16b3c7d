// Package main provides a command-line tool for working with encrypted
// resource archives.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goopsie/arcFileTools/pkg/arc"
	"github.com/goopsie/arcFileTools/pkg/paths"
	"github.com/goopsie/arcFileTools/pkg/xor"
)

// keysEnv names the key table when -keys is not given.
const keysEnv = "ARCTOOL_KEYS"

// inputList collects repeated -input flags.
type inputList []string

func (l *inputList) String() string { return strings.Join(*l, ",") }

func (l *inputList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

var (
	mode           string
	keysPath       string
	staticPaths    string
	customPaths    string
	inputs         inputList
	outputPath     string
	resourcePath   string
	keyOffset      int
	include        string
	strict         bool
	forceOverwrite bool
	skipUnchanged  bool
	noCompress     bool
	verbose        bool
)

func init() {
	flag.StringVar(&mode, "mode", "", "Operation mode: unpack, pack, list, extract, toggle, xor")
	flag.StringVar(&keysPath, "keys", os.Getenv(keysEnv), "Path to the key table (default $"+keysEnv+")")
	flag.StringVar(&staticPaths, "paths", "", "Static path dictionary (JSON, optionally .zst)")
	flag.StringVar(&customPaths, "custom", "", "Discovered path dictionary, read on unpack and written on pack")
	flag.Var(&inputs, "input", "Input archive, directory or file; repeat to layer patch archives over a base")
	flag.StringVar(&outputPath, "output", "", "Output directory or file")
	flag.StringVar(&resourcePath, "path", "", "Resource path or decimal UID for extract mode")
	flag.IntVar(&keyOffset, "offset", 0, "Key offset for xor mode")
	flag.StringVar(&include, "include", "", "Only unpack entries matching this glob (e.g. gfx/**/*.gim)")
	flag.BoolVar(&strict, "strict", false, "Fail on any digest mismatch instead of warning")
	flag.BoolVar(&forceOverwrite, "force", false, "Allow non-empty output directory")
	flag.BoolVar(&skipUnchanged, "skip-unchanged", false, "Leave existing files whose content already matches")
	flag.BoolVar(&noCompress, "no-compress", false, "Store entries uncompressed when packing")
	flag.BoolVar(&verbose, "v", false, "Log debug output")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := validateFlags(); err != nil {
		flag.Usage()
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	key, err := xor.LoadKey(keysPath)
	if err != nil {
		return err
	}
	logger.Debug("key table loaded", "path", keysPath, "size", key.Len())

	opts := []arc.Option{
		arc.WithStrict(strict),
		arc.WithCompression(!noCompress),
		arc.WithLogger(logger),
	}

	switch mode {
	case "unpack":
		return runUnpack(key, opts)
	case "pack":
		return runPack(key, opts)
	case "list":
		return runList(key, opts)
	case "extract":
		return runExtract(key, opts)
	case "toggle":
		return runToggle(key)
	case "xor":
		return runXOR(key)
	default:
		return fmt.Errorf("unknown mode: %s", mode)
	}
}

func validateFlags() error {
	if mode == "" {
		return fmt.Errorf("mode is required")
	}
	if keysPath == "" {
		return fmt.Errorf("key table is required (-keys or $%s)", keysEnv)
	}
	if len(inputs) == 0 {
		return fmt.Errorf("input is required")
	}

	switch mode {
	case "unpack":
		if outputPath == "" {
			return fmt.Errorf("unpack mode requires -output")
		}
	case "pack", "toggle", "xor":
		if len(inputs) != 1 || outputPath == "" {
			return fmt.Errorf("%s mode requires a single -input and -output", mode)
		}
	case "list":
		if len(inputs) != 1 {
			return fmt.Errorf("list mode takes a single -input")
		}
	case "extract":
		if len(inputs) != 1 || resourcePath == "" || outputPath == "" {
			return fmt.Errorf("extract mode requires -input, -path and -output")
		}
	default:
		return fmt.Errorf("mode must be one of unpack, pack, list, extract, toggle, xor")
	}

	return nil
}

func prepareOutputDir() error {
	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if !forceOverwrite {
		empty, err := isDirEmpty(outputPath)
		if err != nil {
			return fmt.Errorf("check output directory: %w", err)
		}
		if !empty {
			return fmt.Errorf("output directory is not empty (use -force to override)")
		}
	}

	return nil
}

func isDirEmpty(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdir(1)
	return err == io.EOF, nil
}

func loadRegistry() (*paths.Registry, error) {
	reg, err := paths.Load(staticPaths, customPaths)
	if err != nil {
		return nil, fmt.Errorf("load path registry: %w", err)
	}
	return reg, nil
}

func runUnpack(key *xor.Key, opts []arc.Option) error {
	if err := prepareOutputDir(); err != nil {
		return err
	}

	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	fmt.Printf("Path registry loaded: %d known paths\n", reg.Len())

	a, err := arc.ReadLayers(context.Background(), key, inputs, opts...)
	if err != nil {
		return err
	}
	fmt.Printf("Archive loaded: %d entries from %d layers\n", a.Len(), len(inputs))
	if damaged := a.Damaged(); len(damaged) > 0 {
		fmt.Printf("Skipped %d entries that could not be decompressed\n", len(damaged))
	}

	fmt.Println("Unpacking files...")
	n, err := a.Unpack(outputPath, reg, unpackOptions()...)
	if err != nil {
		return fmt.Errorf("unpack: %w", err)
	}

	fmt.Printf("Unpack complete. %d files written to %s\n", n, outputPath)
	return nil
}

func unpackOptions() []arc.UnpackOption {
	return []arc.UnpackOption{
		arc.WithPathFilter(include),
		arc.WithSkipUnchanged(skipUnchanged),
	}
}

func runPack(key *xor.Key, opts []arc.Option) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	fmt.Println("Scanning input directory...")
	files, err := arc.ScanFiles(inputs[0])
	if err != nil {
		return fmt.Errorf("scan files: %w", err)
	}
	fmt.Printf("Found %d files\n", len(files))

	fmt.Println("Building archive...")
	a, err := arc.NewBuilder(key, reg, opts...).Build(files)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	if err := a.Pack(outputPath); err != nil {
		return err
	}

	if customPaths != "" {
		if err := reg.SaveDiscovered(customPaths); err != nil {
			return err
		}
		fmt.Printf("Saved %d discovered paths to %s\n", len(reg.Discovered()), customPaths)
	}

	fmt.Printf("Pack complete. Archive written to %s\n", outputPath)
	return nil
}

func runList(key *xor.Key, opts []arc.Option) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	a, err := arc.ReadFile(key, inputs[0], append(opts, arc.WithResolver(reg))...)
	if err != nil {
		return err
	}

	fmt.Printf("Version %d, %d entries\n", a.Version, a.Len())
	for _, e := range a.Entries() {
		fmt.Printf("%10d  %08x  %10d  %016x  %s\n", e.UID, e.NameHash, len(e.Data), e.Fingerprint(), e.Name())
	}
	for uid, err := range a.Damaged() {
		fmt.Printf("%10d  damaged: %v\n", uid, err)
	}
	return nil
}

func runExtract(key *xor.Key, opts []arc.Option) error {
	a, err := arc.ReadFile(key, inputs[0], opts...)
	if err != nil {
		return err
	}

	var q arc.Query = arc.ByPath(resourcePath)
	if uid, err := strconv.ParseUint(resourcePath, 10, 32); err == nil {
		q = arc.ByUID(uid)
	}

	data, ok := a.Extract(q)
	if !ok {
		return fmt.Errorf("%s not found in %s", resourcePath, inputs[0])
	}
	if err := writeOutput(data); err != nil {
		return err
	}

	fmt.Printf("Extracted %d bytes to %s\n", len(data), outputPath)
	return nil
}

func runToggle(key *xor.Key) error {
	data, err := os.ReadFile(inputs[0])
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	out, decrypted, err := arc.Toggle(key, data)
	if err != nil {
		return fmt.Errorf("toggle: %w", err)
	}
	if err := writeOutput(out); err != nil {
		return err
	}

	if decrypted {
		fmt.Printf("Decoded %s to %s\n", inputs[0], outputPath)
	} else {
		fmt.Printf("Encoded %s to %s\n", inputs[0], outputPath)
	}
	return nil
}

func runXOR(key *xor.Key) error {
	data, err := os.ReadFile(inputs[0])
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if err := key.Apply(data, keyOffset); err != nil {
		return err
	}
	if err := writeOutput(data); err != nil {
		return err
	}

	fmt.Printf("Applied key at offset %#x to %d bytes\n", keyOffset, len(data))
	return nil
}

func writeOutput(data []byte) error {
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
