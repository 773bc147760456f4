package main

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/asm"
	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/macros"
)

var (
	MacrosFlag = &cli.StringSliceFlag{
		Name:  "macros",
		Usage: "macro definition file (JSON or CUE); may be repeated",
	}
	PubTapeFlag = &cli.PathFlag{
		Name:  "pubtape",
		Usage: "public tape file embedded into the artifact",
	}
	StrictFlag = &cli.BoolFlag{
		Name:  "strict",
		Usage: "reject immediates and tape words that do not fit a word",
	}
	OutFlag = &cli.PathFlag{
		Name:  "out",
		Usage: "artifact path; defaults to the source path with a .zkm extension",
	}
)

func Assemble(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one source file, got %d", ctx.NArg())
	}
	set, err := macros.Load(ctx.StringSlice(MacrosFlag.Name)...)
	if err != nil {
		return fmt.Errorf("failed to load macros: %w", err)
	}

	opts := asm.DefaultOptions()
	opts.Strict = ctx.Bool(StrictFlag.Name)
	opts.Logger = slog.Default()
	out, err := asm.AssembleFile(ctx.Args().First(), ctx.Path(PubTapeFlag.Name), set, opts, ctx.Path(OutFlag.Name))
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

var AssembleCommand = &cli.Command{
	Name:        "assemble",
	Usage:       "Assemble zkMIPS source into a lowered artifact",
	Description: "Expand macros, resolve labels and operands, and write the lowered program with its public tape",
	ArgsUsage:   "<source.zmips>",
	Action:      Assemble,
	Flags: []cli.Flag{
		MacrosFlag,
		PubTapeFlag,
		StrictFlag,
		OutFlag,
	},
}
