package protocols

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/merkle"
)

const commitBatchSize = 1000

// Commit builds a Merkle tree whose leaves are the variable-length hashes of
// the first width cells of every row, and returns its root. Leaves are padded
// with zero digests to a power of two.
func Commit(ctx context.Context, rows [][]field.Element, width int) (hash.Digest, error) {
	numLeaves := 2
	for numLeaves < len(rows) {
		numLeaves <<= 1
	}
	leaves := make([]hash.Digest, numLeaves)

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(rows); start += commitBatchSize {
		end := min(start+commitBatchSize, len(rows))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				if len(rows[i]) < width {
					return fmt.Errorf("row %d has %d cells, expected at least %d", i, len(rows[i]), width)
				}
				leaves[i] = hash.HashVarlen(rows[i][:width])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return hash.Digest{}, err
	}

	tree, err := merkle.New(leaves)
	if err != nil {
		return hash.Digest{}, fmt.Errorf("failed to create Merkle tree: %w", err)
	}
	return tree.Root(), nil
}
