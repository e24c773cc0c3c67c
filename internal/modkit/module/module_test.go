package module

import (
	"testing"

	phttp "shapeshift/internal/platform/net/http"
	"shapeshift/internal/platform/testkit"
)

type ledger interface{ Balance() int }

type fixedLedger int

func (f fixedLedger) Balance() int { return int(f) }

type stub struct {
	name  string
	ports any
}

func (s stub) MountRoutes(phttp.Router) {}
func (s stub) Ports() any               { return s.ports }
func (s stub) Name() string             { return s.name }

func TestPortsOf(t *testing.T) {
	t.Parallel()
	m := stub{name: "credits", ports: struct {
		Ledger ledger
		Other  int
	}{Ledger: fixedLedger(25)}}

	l, ok := PortsOf[ledger](m)
	if !ok || l.Balance() != 25 {
		t.Fatalf("PortsOf = %v, %v", l, ok)
	}
	if _, ok := PortsOf[ledger](stub{}); ok {
		t.Fatalf("nil ports should not match")
	}
	direct := stub{ports: fixedLedger(3)}
	if l := MustPortsOf[ledger](direct); l.Balance() != 3 {
		t.Fatalf("direct ports = %v", l)
	}
	testkit.MustPanic(t, func() { MustPortsOf[ledger](stub{name: "meta", ports: 1}) })
}

func TestRegistry(t *testing.T) {
	testkit.Serial(t)
	Reset()
	t.Cleanup(Reset)

	Register("credits", fixedLedger(5))
	got, ok := PortsAs[fixedLedger]("credits")
	if !ok || got != 5 {
		t.Fatalf("PortsAs = %v, %v", got, ok)
	}
	if _, ok := PortsAs[string]("credits"); ok {
		t.Fatalf("wrong type should not match")
	}
	if _, ok := PortsAs[fixedLedger]("missing"); ok {
		t.Fatalf("missing name should not match")
	}
}
