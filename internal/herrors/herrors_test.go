package herrors

import (
	"strings"
	"testing"
)

func TestExhaustionCarriesCategoryAndRequestedSize(t *testing.T) {
	err := Exhaustion(4096)
	if err.Category != CategoryExhaustion {
		t.Fatalf("Category = %s, want %s", err.Category, CategoryExhaustion)
	}
	if err.Context["requested"] != uintptr(4096) {
		t.Fatalf("Context[requested] = %v, want 4096", err.Context["requested"])
	}
	if !strings.Contains(err.Error(), "4096") {
		t.Fatalf("Error() = %q, want it to mention the requested size", err.Error())
	}
}

func TestInvariantViolationMessage(t *testing.T) {
	err := InvariantViolation("I4_ADJACENT_FREE", "two adjacent free blocks")
	if err.Code != "I4_ADJACENT_FREE" {
		t.Fatalf("Code = %s, want I4_ADJACENT_FREE", err.Code)
	}
	if err.Category != CategoryInvariant {
		t.Fatalf("Category = %s, want %s", err.Category, CategoryInvariant)
	}
}

func TestCorruptCarriesCategoryAndDetail(t *testing.T) {
	err := Corrupt("pointer 0x1 is not aligned to 8 bytes")
	if err.Category != CategoryMemory {
		t.Fatalf("Category = %s, want %s", err.Category, CategoryMemory)
	}
	if err.Code != "CORRUPT_POINTER" {
		t.Fatalf("Code = %s, want CORRUPT_POINTER", err.Code)
	}
	if !strings.Contains(err.Error(), "not aligned to 8 bytes") {
		t.Fatalf("Error() = %q, want it to mention the detail", err.Error())
	}
}

func TestCallerIsPopulated(t *testing.T) {
	err := InvalidArgument("bad input")
	if err.Caller == "" || err.Caller == "unknown" {
		t.Fatalf("Caller = %q, want a resolved function name", err.Caller)
	}
	if !strings.Contains(err.Caller, "TestCallerIsPopulated") {
		t.Fatalf("Caller = %q, want it to name the calling test", err.Caller)
	}
}
