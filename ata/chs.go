// Copyright 2017-18 Daniel Swarbrick. All rights reserved.
// Use of this source code is governed by a GPL license that can be found in the LICENSE file.

// Cylinder / head / sector address translation.

package ata

import (
	"github.com/dswarbrick/passthru/result"
)

// CHS is a cylinder / head / sector address. Sector numbers start at 1.
type CHS struct {
	Cylinder uint32
	Head     uint16
	Sector   uint16
}

// geometry selects the current translation when word 53 validates it and all of its fields are
// populated, otherwise the native one. capacity is the matching declared capacity, or zero when
// it must be derived from the geometry.
func (m *CapabilityModel) geometry() (g Geometry, capacity uint32) {
	if m.CurrentCHSValid && !m.CurrentCHS.zero() {
		return m.CurrentCHS, m.CurrentCHSCapacity
	}

	return m.NativeCHS, 0
}

// Geometry returns the active CHS translation.
func (m *CapabilityModel) Geometry() Geometry {
	g, _ := m.geometry()
	return g
}

func (m *CapabilityModel) chsCapacity() uint64 {
	g, capacity := m.geometry()
	if capacity == 0 {
		capacity = g.Capacity()
	}

	return uint64(capacity)
}

// CHSToLBA converts a CHS address using the active translation. A result beyond the declared CHS
// capacity is still returned, together with a NotSupported error.
func (m *CapabilityModel) CHSToLBA(addr CHS) (uint64, error) {
	g, _ := m.geometry()
	if g.zero() {
		return 0, result.New(result.NotSupported, "chs to lba")
	}

	if addr.Sector == 0 {
		return 0, result.Newf(result.BadParameter, "chs to lba", "sector numbers start at 1")
	}

	lba := (uint64(addr.Cylinder)*uint64(g.Heads)+uint64(addr.Head))*uint64(g.Sectors) +
		uint64(addr.Sector) - 1

	if lba >= m.chsCapacity() {
		return lba, result.Newf(result.NotSupported, "chs to lba", "lba %d beyond chs capacity", lba)
	}

	return lba, nil
}

// LBAToCHS converts an LBA to a CHS address using the active translation. An LBA beyond the
// declared CHS capacity yields the arithmetic conversion together with a NotSupported error.
func (m *CapabilityModel) LBAToCHS(lba uint64) (CHS, error) {
	g, _ := m.geometry()
	if g.zero() {
		return CHS{}, result.New(result.NotSupported, "lba to chs")
	}

	heads, sectors := uint64(g.Heads), uint64(g.Sectors)
	addr := CHS{
		Cylinder: uint32(lba / (heads * sectors)),
		Head:     uint16((lba / sectors) % heads),
		Sector:   uint16(lba%sectors + 1),
	}

	if lba >= m.chsCapacity() {
		return addr, result.Newf(result.NotSupported, "lba to chs", "lba %d beyond chs capacity", lba)
	}

	return addr, nil
}
