package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"brawlnet/netplay"
)

func main() {
	var outDir string
	flag.StringVar(&outDir, "out", "", "directory to write the frame JSON schemas")
	flag.Parse()

	if outDir == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	for name, schema := range buildSchemas() {
		if err := writeSchema(filepath.Join(outDir, name), schema); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write schema %s: %v\n", name, err)
			os.Exit(1)
		}
	}
}

func buildSchemas() map[string]*jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	frames := []struct {
		file  string
		title string
		v     any
	}{
		{"commands.schema.json", "COMMANDS frame", new(netplay.CommandsFrame)},
		{"lobby_request.schema.json", "LOBBY REQUEST frame", new(netplay.LobbyRequestFrame)},
		{"lobby_list.schema.json", "LOBBY LIST frame", new(netplay.LobbyListFrame)},
	}
	out := make(map[string]*jsonschema.Schema, len(frames))
	for _, f := range frames {
		schema := reflector.Reflect(f.v)
		schema.Title = f.title
		schema.Description = "brawlnet wire envelope"
		out[f.file] = schema
	}
	return out
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}

	return nil
}
