// Package zkmips is the public API of the zkMIPS pipeline: an assembler for
// a MIPS-like register machine, a deterministic execution engine, and a
// reducer that turns an execution into a checkable AIR-style constraint
// system.
//
// # Quick Start
//
// Assembling a source file and running the artifact:
//
//	artifact, err := zkmips.Assemble("factorial.zmips", "", "", false)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer os.Remove(artifact)
//
//	answer, _, err := zkmips.Run(ctx, artifact, "", 0, 60, false, false, false)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Running in-memory source with a private tape:
//
//	result, err := zkmips.Execute(ctx, src, nil, []uint32{4, 1, 3}, zkmips.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.Answer, result.System.NumConstraints())
//
// # Modes
//
// Run executes in one of three modes. answerOnly returns the answer alone
// and records no trace. traceOnly returns the trace without reducing it.
// Otherwise the trace is reduced and every constraint is checked; a run
// whose constraint system is unsatisfiable is an error.
//
// # Architecture
//
//   - pkg/vybium-zkmips/: Public API (this package)
//   - internal/vybium-zkmips/: assembler, macros, engine, reducer
//
// Errors returned by this package are *ZKMipsError values classified by
// ErrorCode. The wrapped cause keeps the internal sentinel, so errors.Is
// still reaches it.
//
// # Word size
//
// Words are 32 bits by default. Building with the zkmips16 tag selects
// 16-bit words; artifacts record their word size and are rejected by a
// machine of the other size.
package zkmips
