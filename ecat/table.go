package ecat

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// TableEntry is the expected device at one position of the segment.
type TableEntry struct {
	Name     string `yaml:"name"`
	Vendor   uint32 `yaml:"vendor"`
	Product  uint32 `yaml:"product"`
	Revision uint32 `yaml:"revision,omitempty"`

	OutBytes int `yaml:"out_bytes"`
	InBytes  int `yaml:"in_bytes"`
}

// ConfigTable is the expected layout of a segment, in position order. With
// ConfigInit(true) the table replaces live descriptor discovery for process
// data sizes and verifies each device's identity.
type ConfigTable struct {
	Slaves []TableEntry `yaml:"slaves"`
}

// ParseConfigTable parses a YAML config table document.
func ParseConfigTable(data []byte) (*ConfigTable, error) {
	var t ConfigTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse config table: %w", err)
	}

	return &t, nil
}

// SetConfigTable loads the expected-device table used by ConfigInit(true).
func (m *Master) SetConfigTable(t *ConfigTable) {
	m.table = t
}

// matches reports whether a device's identity satisfies the entry.
// A zero revision in the entry matches any revision.
func (e *TableEntry) matches(s *Slave) bool {
	if e.Vendor != s.Vendor || e.Product != s.Product {
		return false
	}
	return e.Revision == 0 || e.Revision == s.Revision
}

// applyTable matches enumerated devices against the loaded table by position.
// A mismatched or surplus device is left unconfigured; the scan continues.
func (m *Master) applyTable() {
	for p, s := range m.slaves {
		if p >= len(m.table.Slaves) {
			m.logger.Warn("no table entry for slave, leaving unconfigured", "position", p)
			s.Configured = false
			continue
		}

		e := &m.table.Slaves[p]
		if !s.Configured || !e.matches(s) {
			m.logger.Warn("slave does not match table entry, leaving unconfigured",
				"position", p,
				"vendor", s.Vendor, "product", s.Product, "revision", s.Revision)
			s.Configured = false
			continue
		}

		s.Name = e.Name
		s.OutBytes = e.OutBytes
		s.InBytes = e.InBytes
	}
}
