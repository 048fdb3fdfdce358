// Command resultsctl inspects race results files offline: it detects their
// format, parses them and suggests column mappings, printing JSON.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/raceresults/internal/config"
	"github.com/JonMunkholm/raceresults/internal/core"
	"github.com/JonMunkholm/raceresults/internal/logging"
	"github.com/JonMunkholm/raceresults/internal/results"
	"github.com/JonMunkholm/raceresults/internal/web/middleware"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		slog.Error("resultsctl failed", "error", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "resultsctl",
		Usage:     "inspect race results files",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "charset",
				Usage:   "charset of files that are not UTF-8",
				Value:   "windows-1252",
				EnvVars: []string{"IMPORT_LEGACY_CHARSET"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			slog.SetDefault(logging.New(c.App.ErrWriter, c.String("log-level"), "text"))
			return nil
		},
		Commands: []*cli.Command{
			detectCommand(),
			parseCommand(),
			suggestCommand(),
			tokenCommand(),
		},
	}
}

func detectCommand() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Usage:     "print the detected format and header row",
		ArgsUsage: "FILE",
		Action: func(c *cli.Context) error {
			name, text, err := readFile(c)
			if err != nil {
				return err
			}
			format := results.Detect(name, text)
			return printJSON(c, map[string]any{
				"file":        name,
				"format":      format,
				"spreadsheet": results.IsSpreadsheet(name),
				"headers":     results.HeaderCells(format, text),
			})
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "parse a file and print results and row errors",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mapping", Usage: `column mapping as JSON, e.g. {"bib":0,"fullName":1}`},
			&cli.StringFlag{Name: "separator", Usage: "cell separator for mapped files (sniffed when empty)"},
			&cli.StringFlag{Name: "format", Usage: "skip detection and use this format"},
		},
		Action: func(c *cli.Context) error {
			name, text, err := readFile(c)
			if err != nil {
				return err
			}

			format := results.Format(c.String("format"))
			if format == "" {
				format = results.Detect(name, text)
			} else if !format.Valid() {
				return fmt.Errorf("unknown format %q", format)
			}

			start := time.Now()
			var parsed results.ParseResult
			if raw := c.String("mapping"); raw != "" {
				var mapping results.ColumnMapping
				if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
					return fmt.Errorf("%w: %v", core.ErrInvalidMapping, err)
				}
				if !mapping.Has(results.FieldBib) {
					return fmt.Errorf("%w: no bib column", core.ErrInvalidMapping)
				}
				parsed = results.ParseWithMapping(text, mapping, core.MappedSeparator(name, c.String("separator")))
			} else {
				parsed = results.ParseAs(format, text)
			}

			slog.Debug("parsed file",
				"file", name,
				"format", format,
				"results", len(parsed.Results),
				"errors", len(parsed.Errors),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return printJSON(c, map[string]any{
				"format":  format,
				"results": parsed.Results,
				"errors":  parsed.Errors,
			})
		},
	}
}

func suggestCommand() *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "suggest a column mapping from the header row",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "presets", Usage: "YAML file of mapping presets", EnvVars: []string{"MAPPING_PRESETS_FILE"}},
		},
		Action: func(c *cli.Context) error {
			name, text, err := readFile(c)
			if err != nil {
				return err
			}

			headers := results.HeaderCells(results.Detect(name, text), text)
			if len(headers) == 0 {
				return fmt.Errorf("%s has no header row", name)
			}

			presets := &config.MappingPresets{}
			if path := c.String("presets"); path != "" {
				if presets, err = config.LoadMappingPresets(path); err != nil {
					return err
				}
			}

			// Offline: no saved templates, only presets and keywords.
			svc := core.NewService(core.NewMemStore(), config.ImportConfig{}, core.Deps{Presets: presets})
			suggestion, err := svc.SuggestMapping(c.Context, headers)
			if err != nil {
				return err
			}
			return printJSON(c, map[string]any{
				"headers":    headers,
				"suggestion": suggestion,
			})
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue a bearer token for the API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "secret", Required: true, EnvVars: []string{"JWT_SECRET"}},
			&cli.StringFlag{Name: "issuer", EnvVars: []string{"JWT_ISSUER"}},
			&cli.StringFlag{Name: "subject", Required: true},
			&cli.StringFlag{Name: "role", Value: middleware.RoleOrganizer},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
		},
		Action: func(c *cli.Context) error {
			role := c.String("role")
			if role != middleware.RoleOrganizer && role != middleware.RoleAdmin {
				return fmt.Errorf("unknown role %q", role)
			}
			auth := middleware.NewAuthenticator(c.String("secret"), c.String("issuer"))
			token, err := auth.IssueToken(c.String("subject"), role, c.Duration("ttl"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, token)
			return err
		},
	}
}

// readFile loads the FILE argument and decodes it to text, converting
// spreadsheets to tab-separated rows.
func readFile(c *cli.Context) (name, text string, err error) {
	if c.NArg() != 1 {
		return "", "", fmt.Errorf("expected exactly one FILE argument")
	}
	path := c.Args().First()
	name = filepath.Base(path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	if len(raw) == 0 {
		return "", "", core.ErrEmptyFile
	}

	text, err = core.DecodeContent(name, raw, c.String("charset"))
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", name, err)
	}
	return name, text, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
