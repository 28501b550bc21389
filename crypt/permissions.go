package crypt

import "strings"

// Permissions holds the user access bits from the /P entry.
type Permissions uint32

// Permission bits (bit positions are 1-based in the PDF reference).
const (
	PermPrint        Permissions = 1 << 2
	PermModify       Permissions = 1 << 3
	PermCopy         Permissions = 1 << 4
	PermAnnotate     Permissions = 1 << 5
	PermFillForms    Permissions = 1 << 8
	PermExtract      Permissions = 1 << 9
	PermAssemble     Permissions = 1 << 10
	PermPrintQuality Permissions = 1 << 11

	PermAll = PermPrint | PermModify | PermCopy | PermAnnotate |
		PermFillForms | PermExtract | PermAssemble | PermPrintQuality
)

// userBits are the bits a writer may clear; all others are fixed.
const userBits = uint32(PermAll)

// Has reports whether every bit in flag is granted.
func (p Permissions) Has(flag Permissions) bool {
	return p&flag == flag
}

// P returns the signed /P value for the permissions, with the reserved
// bits set the way the standard handler requires.
func (p Permissions) P() int32 {
	return int32(uint32(p)&userBits | 0xFFFFF0C0)
}

func (p Permissions) String() string {
	names := []struct {
		flag Permissions
		name string
	}{
		{PermPrint, "print"},
		{PermModify, "modify"},
		{PermCopy, "copy"},
		{PermAnnotate, "annotate"},
		{PermFillForms, "fill-forms"},
		{PermExtract, "extract"},
		{PermAssemble, "assemble"},
		{PermPrintQuality, "print-high"},
	}
	var out []string
	for _, n := range names {
		if p.Has(n.flag) {
			out = append(out, n.name)
		}
	}
	if len(out) == 0 {
		return "none"
	}
	return strings.Join(out, ",")
}
