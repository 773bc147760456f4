package main

import (
	"fmt"
	"log/slog"

	"github.com/pkg/profile"
	"github.com/urfave/cli/v2"

	"github.com/vybium/vybium-zkmips/internal/vybium-zkmips/logs"
	zkmips "github.com/vybium/vybium-zkmips/pkg/vybium-zkmips"
)

var (
	AuxTapeFlag = &cli.PathFlag{
		Name:  "auxtape",
		Usage: "private (auxiliary) tape file",
	}
	SecurityFlag = &cli.IntFlag{
		Name:  "sec",
		Usage: "soundness of the permutation and lookup arguments in bits",
		Value: 60,
	}
	StartFlag = &cli.IntFlag{
		Name:  "start",
		Usage: "program counter of the first executed instruction",
	}
	VerboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "log every executed cycle at debug level",
	}
	TraceOnlyFlag = &cli.BoolFlag{
		Name:  "trace-only",
		Usage: "record the trace but skip the reduction",
	}
	AnswerOnlyFlag = &cli.BoolFlag{
		Name:  "answer-only",
		Usage: "compute the answer without recording a trace",
	}
)

func Run(ctx *cli.Context) error {
	if ctx.Bool(PProfCPUFlag.Name) {
		defer profile.Start(profile.NoShutdownHook, profile.ProfilePath("."), profile.CPUProfile).Stop()
	}
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one artifact, got %d", ctx.NArg())
	}

	if ctx.Bool(VerboseFlag.Name) {
		logs.Verbose()
	}

	answer, trace, err := zkmips.Run(ctx.Context,
		ctx.Args().First(),
		ctx.Path(AuxTapeFlag.Name),
		ctx.Int(StartFlag.Name),
		ctx.Int(SecurityFlag.Name),
		ctx.Bool(VerboseFlag.Name),
		ctx.Bool(TraceOnlyFlag.Name),
		ctx.Bool(AnswerOnlyFlag.Name))
	if err != nil {
		return err
	}
	if trace != nil {
		slog.Info("run complete", "cycles", trace.Len(), "public_reads", trace.PublicReads,
			"private_reads", trace.PrivateReads)
	}
	fmt.Println(answer)
	return nil
}

var RunCommand = &cli.Command{
	Name:        "run",
	Usage:       "Execute an artifact and check its constraint system",
	Description: "Execute a lowered program against a private tape, then reduce the trace and check every constraint",
	ArgsUsage:   "<program.zkm>",
	Action:      Run,
	Flags: []cli.Flag{
		AuxTapeFlag,
		SecurityFlag,
		StartFlag,
		VerboseFlag,
		TraceOnlyFlag,
		AnswerOnlyFlag,
	},
}
