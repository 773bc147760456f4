package utils

import (
	"math/big"
	"testing"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

func TestChannelSendChangesState(t *testing.T) {
	for _, hashFunc := range []string{"", "sha3", "sha256"} {
		t.Run(hashFunc, func(t *testing.T) {
			quiet := NewChannel(hashFunc)
			ch := NewChannel(hashFunc)
			ch.Send([]byte("commitment"))
			if quiet.ReceiveRandomFieldElement().Equal(ch.ReceiveRandomFieldElement()) {
				t.Error("challenges should depend on what was sent")
			}
		})
	}
}

func TestChannelDeterminism(t *testing.T) {
	a := NewChannel("sha3")
	b := NewChannel("sha3")
	elems := []field.Element{field.New(1), field.New(2), field.New(3)}
	a.SendElements(elems)
	b.SendElements(elems)

	ra := a.ReceiveRandomFieldElements(4)
	rb := b.ReceiveRandomFieldElements(4)
	for i := range ra {
		if !ra[i].Equal(rb[i]) {
			t.Fatalf("challenge %d differs between identical transcripts", i)
		}
	}
	if ra[0].Equal(ra[1]) {
		t.Errorf("consecutive challenges should differ")
	}

	c := NewChannel("sha3")
	c.SendElements([]field.Element{field.New(1), field.New(2), field.New(4)})
	if c.ReceiveRandomFieldElement().Equal(ra[0]) {
		t.Errorf("different transcripts should yield different challenges")
	}
}

func TestReceiveRandomIntInvalidRange(t *testing.T) {
	ch := NewChannel("sha3")
	if got := ch.ReceiveRandomInt(bigInt(5), bigInt(1)); got != nil {
		t.Errorf("expected nil for min > max, got %v", got)
	}
	got := ch.ReceiveRandomInt(bigInt(3), bigInt(3))
	if got == nil || got.Int64() != 3 {
		t.Errorf("degenerate range should return its only value, got %v", got)
	}
}

func bigInt(v int64) *big.Int { return big.NewInt(v) }
