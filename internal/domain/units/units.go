// Package units converts quantities between compatible measurement units.
//
// Every known unit maps to a family and a factor relative to the family's
// base unit (kg, l, m, unit). Packaging units such as box or dozen have no
// family: they only convert to themselves.
package units

import (
	"strings"

	"github.com/shopspring/decimal"

	"retailledger/internal/core/apperror"
)

// Family groups units that share a base unit.
type Family string

const (
	FamilyMass   Family = "mass"
	FamilyVolume Family = "volume"
	FamilyLength Family = "length"
	FamilyCount  Family = "count"
)

// Unit is one entry of the factor table.
type Unit struct {
	Symbol string
	Family Family
	// Factor converts one of this unit into the family base unit.
	Factor decimal.Decimal
}

func unit(symbol string, family Family, factor string) Unit {
	return Unit{Symbol: symbol, Family: family, Factor: decimal.RequireFromString(factor)}
}

var (
	kg   = unit("kg", FamilyMass, "1")
	g    = unit("g", FamilyMass, "0.001")
	mg   = unit("mg", FamilyMass, "0.000001")
	lb   = unit("lb", FamilyMass, "0.45359237")
	oz   = unit("oz", FamilyMass, "0.028349523125")
	l    = unit("l", FamilyVolume, "1")
	ml   = unit("ml", FamilyVolume, "0.001")
	cl   = unit("cl", FamilyVolume, "0.01")
	m3   = unit("m3", FamilyVolume, "1000")
	m    = unit("m", FamilyLength, "1")
	cm   = unit("cm", FamilyLength, "0.01")
	mm   = unit("mm", FamilyLength, "0.001")
	km   = unit("km", FamilyLength, "1000")
	each = unit("unit", FamilyCount, "1")
)

var table = map[string]Unit{
	"kg": kg, "kilo": kg, "kilos": kg, "kilogramo": kg, "kilogramos": kg,
	"g": g, "gr": g, "gramo": g, "gramos": g,
	"mg": mg,
	"lb": lb, "libra": lb, "libras": lb,
	"oz": oz, "onza": oz, "onzas": oz,
	"l": l, "lt": l, "litro": l, "litros": l,
	"ml": ml, "cc": ml, "mililitro": ml, "mililitros": ml,
	"cl": cl,
	"m3": m3,
	"m":  m, "mt": m, "metro": m, "metros": m,
	"cm": cm, "centimetro": cm, "centimetros": cm,
	"mm":   mm,
	"km":   km,
	"unit": each, "u": each, "un": each, "unidad": each, "unidades": each, "pcs": each,
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup returns the table entry for name.
func Lookup(name string) (Unit, bool) {
	u, ok := table[normalize(name)]
	return u, ok
}

// Convertible reports whether a quantity in from can be expressed in to.
func Convertible(from, to string) bool {
	if normalize(from) == normalize(to) {
		return true
	}
	a, okA := Lookup(from)
	b, okB := Lookup(to)
	return okA && okB && a.Family == b.Family
}

// Result is the outcome of a conversion.
type Result struct {
	Quantity decimal.Decimal
	// Mismatch is set when the units were unknown or incompatible and the
	// quantity was passed through unchanged.
	Mismatch bool
}

// Converter applies the conversion policy.
// The zero value is fail-open.
type Converter struct {
	Strict bool
}

// NewConverter creates a converter; strict rejects unknown or incompatible units.
func NewConverter(strict bool) *Converter {
	return &Converter{Strict: strict}
}

// Convert expresses qty (in from) in to.
func (c *Converter) Convert(qty decimal.Decimal, from, to string) (Result, error) {
	if normalize(from) == normalize(to) {
		return Result{Quantity: qty}, nil
	}
	a, okA := Lookup(from)
	b, okB := Lookup(to)
	if !okA || !okB || a.Family != b.Family {
		if c != nil && c.Strict {
			return Result{}, apperror.NewValidation("incompatible units").
				WithDetail("from", from).
				WithDetail("to", to)
		}
		return Result{Quantity: qty, Mismatch: true}, nil
	}
	return Result{Quantity: qty.Mul(a.Factor).Div(b.Factor)}, nil
}

// ToBase expresses qty (in unit) in the family base unit.
// Unknown units pass through unchanged.
func ToBase(qty decimal.Decimal, unit string) decimal.Decimal {
	u, ok := Lookup(unit)
	if !ok {
		return qty
	}
	return qty.Mul(u.Factor)
}

// FromBase expresses a base-unit qty in unit.
// Unknown units pass through unchanged.
func FromBase(qty decimal.Decimal, unit string) decimal.Decimal {
	u, ok := Lookup(unit)
	if !ok {
		return qty
	}
	return qty.Div(u.Factor)
}

// Convert is the fail-open conversion.
func Convert(qty decimal.Decimal, from, to string) decimal.Decimal {
	res, _ := (&Converter{}).Convert(qty, from, to)
	return res.Quantity
}
