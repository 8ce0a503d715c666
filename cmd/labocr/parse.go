package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/nikhilbhutani/labocr/internal/labreport"
)

var cmdParse = &cli.Command{
	Name:   "parse",
	Usage:  "Extract test records from recognized text read on stdin",
	Action: runParse,
}

func runParse(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd)

	text, err := io.ReadAll(cmd.Root().Reader)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	res, err := labreport.NewExtractor(labreport.WithLogger(slog.Default())).Extract(string(text))
	if err != nil {
		return err
	}
	return json.NewEncoder(cmd.Root().Writer).Encode(res)
}
